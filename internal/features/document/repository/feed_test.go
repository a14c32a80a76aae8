package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"budget-bubble-backend/internal/features/document/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLoader(id string, calls *atomic.Int32) Loader {
	return func(context.Context) (*models.Document, error) {
		calls.Add(1)
		return &models.Document{ID: id, Fields: models.Fields{}, Exists: true}, nil
	}
}

func TestFeedDeliversInitialSnapshot(t *testing.T) {
	var loads, delivered atomic.Int32
	f := StartFeed(context.Background(), staticLoader("a", &loads), func(*models.Document) { delivered.Add(1) }, nil)
	defer f.Stop()

	require.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFeedStopsDelivering(t *testing.T) {
	var loads, delivered atomic.Int32
	f := StartFeed(context.Background(), staticLoader("a", &loads), func(*models.Document) { delivered.Add(1) }, nil)
	require.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.Stop()
	f.Stop()
	f.Notify()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), delivered.Load())

	select {
	case <-f.Done():
	default:
		t.Fatal("feed goroutine still running")
	}
}

func TestFeedReportsLoadErrors(t *testing.T) {
	var errs atomic.Int32
	load := func(context.Context) (*models.Document, error) { return nil, errors.New("boom") }
	f := StartFeed(context.Background(), load, func(*models.Document) { t.Error("unexpected snapshot") }, func(error) { errs.Add(1) })
	defer f.Stop()

	require.Eventually(t, func() bool { return errs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubNotifiesOnlyMatchingFeeds(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var aLoads, bLoads atomic.Int32
	cancelA, err := h.Attach(context.Background(), "a", staticLoader("a", &aLoads), func(*models.Document) {}, nil)
	require.NoError(t, err)
	_, err = h.Attach(context.Background(), "b", staticLoader("b", &bLoads), func(*models.Document) {}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return aLoads.Load() == 1 && bLoads.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.Notify("a")
	require.Eventually(t, func() bool { return aLoads.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), bLoads.Load())

	assert.Equal(t, 1, h.Count("a"))
	cancelA()
	assert.Equal(t, 0, h.Count("a"))
}

func TestHubNotifyAllReloadsEveryFeed(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var aLoads, bLoads atomic.Int32
	_, err := h.Attach(context.Background(), "a", staticLoader("a", &aLoads), func(*models.Document) {}, nil)
	require.NoError(t, err)
	_, err = h.Attach(context.Background(), "b", staticLoader("b", &bLoads), func(*models.Document) {}, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return aLoads.Load() == 1 && bLoads.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.NotifyAll()
	require.Eventually(t, func() bool { return aLoads.Load() == 2 && bLoads.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHubRejectsAttachAfterClose(t *testing.T) {
	h := NewHub()
	h.Close()

	_, err := h.Attach(context.Background(), "a", LoadOrAbsent("a", nil), func(*models.Document) {}, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoadOrAbsentMapsNotFound(t *testing.T) {
	get := func(context.Context, string) (*models.Document, error) { return nil, ErrNotFound }
	doc, err := LoadOrAbsent("ghost", get)(context.Background())
	require.NoError(t, err)
	assert.False(t, doc.Exists)
	assert.Equal(t, "ghost", doc.ID)
}
