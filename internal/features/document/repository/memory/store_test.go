package memory

import (
	"context"
	"encoding/json"
	"testing"

	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"
	"budget-bubble-backend/internal/features/document/repository/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.DocumentStore { return New() })
}

func TestSubscribersCountedAndReleased(t *testing.T) {
	s := New()
	noop := func(*models.Document) {}

	c1, err := s.Subscribe(context.Background(), "alice", noop)
	require.NoError(t, err)
	c2, err := s.Subscribe(context.Background(), "alice", noop)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Subscribers("alice"))

	c1()
	assert.Equal(t, 1, s.Subscribers("alice"))
	c2()
	assert.Equal(t, 0, s.Subscribers("alice"))
}

func TestUpdateArrayRejectsUnknownOp(t *testing.T) {
	s := New()
	err := s.UpdateArray(context.Background(), "alice", "friendIds", models.ArrayOp("xor"), json.RawMessage(`"bob"`))
	assert.Error(t, err)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "alice", models.Fields{"saved": json.RawMessage(`1`)}))

	doc, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	doc.Fields["saved"] = json.RawMessage(`99`)

	doc, err = s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1.0, models.Field(doc.Fields, "saved", 0.0))
}
