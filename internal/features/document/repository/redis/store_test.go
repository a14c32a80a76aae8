package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"
	"budget-bubble-backend/internal/features/document/repository/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewStore(client, "users")
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.DocumentStore {
		store, _ := newTestStore(t)
		return store
	})
}

func TestLayoutUsesHashAndSet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	fields, err := models.EncodeFields(map[string]any{"username": "Alice", "saved": 12.5})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "alice", fields))
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, json.RawMessage(`"bob"`)))

	assert.Equal(t, `"Alice"`, mr.HGet("users:alice", "username"))
	assert.Equal(t, `12.5`, mr.HGet("users:alice", "saved"))

	members, err := mr.ZMembers("users:alice:set:friendIds")
	require.NoError(t, err)
	assert.Equal(t, []string{`"bob"`}, members)
}

func TestSetFieldsKeepInsertionOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zed", "amy", "mike", "amy"} {
		raw, err := json.Marshal(id)
		require.NoError(t, err)
		require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, raw))
	}
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayDifference, json.RawMessage(`"zed"`)))
	require.NoError(t, store.UpdateArray(ctx, "alice", "friendIds", models.ArrayUnion, json.RawMessage(`"bea"`)))

	doc, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "mike", "bea"}, models.Field[[]string](doc.Fields, "friendIds", nil))
}

func TestSubscriptionsReloadAfterReconnect(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	fields, err := models.EncodeFields(map[string]any{"username": "Alice"})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "alice", fields))

	var mu sync.Mutex
	var last string
	cancel, err := store.Subscribe(ctx, "alice", func(doc *models.Document) {
		mu.Lock()
		defer mu.Unlock()
		last = models.Field(doc.Fields, "username", "")
	})
	require.NoError(t, err)
	defer cancel()

	username := func() string {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	require.Eventually(t, func() bool { return username() == "Alice" }, 3*time.Second, 10*time.Millisecond)

	// a change made while the listener is disconnected publishes nothing
	mr.Close()
	mr.HSet("users:alice", "username", `"Back"`)
	require.NoError(t, mr.Restart())

	require.Eventually(t, func() bool { return username() == "Back" }, 5*time.Second, 20*time.Millisecond)
}

func TestUpdateArrayOnlyOnSetFields(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.UpdateArray(context.Background(), "alice", "categories", models.ArrayUnion, json.RawMessage(`"Food"`))
	assert.ErrorIs(t, err, repository.ErrUnsupportedArrayField)
}

func TestSubscribeRequiresStart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewStore(client, "users")
	_, err := store.Subscribe(context.Background(), "alice", func(*models.Document) {})
	assert.Error(t, err)
}
