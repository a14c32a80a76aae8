// Package storetest holds the behavioural contract every DocumentStore
// backend must satisfy.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

// Run executes the contract against stores produced by newStore. Each
// subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) repository.DocumentStore) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("MergeWrite", func(t *testing.T) { testMergeWrite(t, newStore(t)) })
	t.Run("ArrayUnionDifference", func(t *testing.T) { testArrayOps(t, newStore(t)) })
	t.Run("SetReplacesArray", func(t *testing.T) { testSetReplacesArray(t, newStore(t)) })
	t.Run("SubscribeLifecycle", func(t *testing.T) { testSubscribe(t, newStore(t)) })
}

func encode(t *testing.T, patch map[string]any) models.Fields {
	t.Helper()
	fields, err := models.EncodeFields(patch)
	require.NoError(t, err)
	return fields
}

func rawString(t *testing.T, s string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return raw
}

func testGetMissing(t *testing.T, store repository.DocumentStore) {
	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testMergeWrite(t *testing.T, store repository.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "alice", encode(t, map[string]any{"saved": 10.0, "username": "Alice"})))
	require.NoError(t, store.Set(ctx, "alice", encode(t, map[string]any{"saved": 25.5})))

	doc, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, doc.Exists)
	assert.Equal(t, 25.5, models.Field(doc.Fields, "saved", 0.0))
	assert.Equal(t, "Alice", models.Field(doc.Fields, "username", ""))
}

func testArrayOps(t *testing.T, store repository.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, rawString(t, "bob")))
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, rawString(t, "bob")))
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, rawString(t, "carol")))

	doc, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, doc.Exists)
	// array fields keep insertion order on every backend
	assert.Equal(t, []string{"bob", "carol"}, models.Field[[]string](doc.Fields, "friendIds", nil))

	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayDifference, rawString(t, "bob")))
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayDifference, rawString(t, "zed")))

	doc, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, models.Field[[]string](doc.Fields, "friendIds", nil))
}

func testSetReplacesArray(t *testing.T, store repository.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, rawString(t, "bob")))
	require.NoError(t, store.Set(ctx, "alice", encode(t, map[string]any{"friendIds": []string{}, "saved": 0.0})))

	doc, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, models.Field(doc.Fields, "friendIds", []string{"stale"}))

	require.NoError(t, store.Set(ctx, "alice", encode(t, map[string]any{"friendIds": []string{"erin", "dan"}})))
	doc, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"erin", "dan"}, models.Field[[]string](doc.Fields, "friendIds", nil))
}

type recorder struct {
	mu   sync.Mutex
	docs []*models.Document
}

func (r *recorder) add(doc *models.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func (r *recorder) last() *models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[len(r.docs)-1]
}

func testSubscribe(t *testing.T, store repository.DocumentStore) {
	ctx := context.Background()
	rec := &recorder{}

	cancel, err := store.Subscribe(ctx, "alice", rec.add)
	require.NoError(t, err)

	// first snapshot reports the missing document
	require.Eventually(t, func() bool { return rec.len() >= 1 }, waitFor, tick)
	assert.False(t, rec.last().Exists)

	require.NoError(t, store.Set(ctx, "alice", encode(t, map[string]any{"latestCheerAt": 42})))
	require.Eventually(t, func() bool {
		return rec.len() >= 2 && models.Field(rec.last().Fields, "latestCheerAt", int64(0)) == 42
	}, waitFor, tick)
	assert.True(t, rec.last().Exists)

	cancel()
	cancel()
	seen := rec.len()

	require.NoError(t, store.Set(ctx, "alice", encode(t, map[string]any{"latestCheerAt": 43})))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, rec.len())
}
