package repository

import (
	"context"
	"sync"

	"budget-bubble-backend/internal/features/document/models"
)

// Feed turns change notifications into full document snapshots. Bursts of
// notifications collapse into one reload because every snapshot is complete.
type Feed struct {
	notify   chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// StartFeed loads and delivers the current document straight away, then
// reloads on every Notify until Stop.
func StartFeed(parent context.Context, load Loader, fn models.SnapshotFunc, onError func(error)) *Feed {
	ctx, cancel := context.WithCancel(parent)
	f := &Feed{
		notify: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	f.notify <- struct{}{}

	go func() {
		defer close(f.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.notify:
			}

			doc, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			fn(doc)
		}
	}()

	return f
}

// Notify schedules a reload without blocking.
func (f *Feed) Notify() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Stop cancels the feed and waits for an in-flight delivery to return.
// It must not be called from inside the snapshot callback.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		f.cancel()
		<-f.done
	})
}

// Done is closed once the feed goroutine has exited.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Hub fans change notifications for a document id out to its feeds.
type Hub struct {
	mu     sync.Mutex
	feeds  map[string]map[*Feed]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[string]map[*Feed]struct{})}
}

// Attach starts a feed for id and registers it before the first load, so no
// change that lands after Attach returns can be missed.
func (h *Hub) Attach(ctx context.Context, id string, load Loader, fn models.SnapshotFunc, onError func(error)) (models.CancelFunc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	feed := StartFeed(context.WithoutCancel(ctx), load, fn, onError)
	if h.feeds[id] == nil {
		h.feeds[id] = make(map[*Feed]struct{})
	}
	h.feeds[id][feed] = struct{}{}

	return func() {
		h.mu.Lock()
		if set, ok := h.feeds[id]; ok {
			delete(set, feed)
			if len(set) == 0 {
				delete(h.feeds, id)
			}
		}
		h.mu.Unlock()
		feed.Stop()
	}, nil
}

func (h *Hub) Notify(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for feed := range h.feeds[id] {
		feed.Notify()
	}
}

// NotifyAll forces a reload of every feed, used after the listener reconnects.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.feeds {
		for feed := range set {
			feed.Notify()
		}
	}
}

// Count reports the live feeds for id.
func (h *Hub) Count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds[id])
}

// Close stops every feed and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var feeds []*Feed
	for _, set := range h.feeds {
		for feed := range set {
			feeds = append(feeds, feed)
		}
	}
	h.feeds = make(map[string]map[*Feed]struct{})
	h.mu.Unlock()

	for _, feed := range feeds {
		feed.Stop()
	}
}
