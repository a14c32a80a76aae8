package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"budget-bubble-backend/internal/common/logger"
	docmodels "budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/friends/models"
)

// Subscriber opens live subscriptions on remote documents.
type Subscriber interface {
	Subscribe(ctx context.Context, id string, fn docmodels.SnapshotFunc) (docmodels.CancelFunc, error)
}

type ErrorReporter interface {
	Report(op, userID string, err error)
}

// subscription identifies one activation of a friend id. Snapshots are only
// accepted while the map still points at the same value, so a late snapshot
// from a cancelled or replaced subscription is dropped.
type subscription struct {
	cancel docmodels.CancelFunc
}

// Manager keeps exactly one live subscription per friend id and a members
// cache fed by their snapshots. It never writes to remote documents.
type Manager struct {
	ctx        context.Context
	owner      string
	subscriber Subscriber
	reporter   ErrorReporter

	mu      sync.Mutex
	order   []string
	subs    map[string]*subscription
	members map[string]models.GroupMember
	closed  bool
}

// NewManager binds subscriptions to ctx without inheriting its cancellation;
// they end on Reconcile or Close.
func NewManager(ctx context.Context, owner string, subscriber Subscriber, reporter ErrorReporter) *Manager {
	if reporter == nil {
		reporter = logger.NewReporter("friends")
	}
	return &Manager{
		ctx:        context.WithoutCancel(ctx),
		owner:      owner,
		subscriber: subscriber,
		reporter:   reporter,
		subs:       make(map[string]*subscription),
		members:    make(map[string]models.GroupMember),
	}
}

// Reconcile makes the active subscriptions match ids. Removed ids are
// cancelled and dropped from members before Reconcile returns.
func (m *Manager) Reconcile(ids []string) {
	wanted := normalize(ids, m.owner)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	keep := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		keep[id] = true
	}

	var stale []docmodels.CancelFunc
	for id, sub := range m.subs {
		if keep[id] {
			continue
		}
		delete(m.subs, id)
		delete(m.members, id)
		if sub.cancel != nil {
			stale = append(stale, sub.cancel)
		}
	}
	if len(wanted) == 0 {
		m.members = make(map[string]models.GroupMember)
	}

	started := make(map[string]*subscription)
	for _, id := range wanted {
		if _, ok := m.subs[id]; ok {
			continue
		}
		sub := &subscription{}
		m.subs[id] = sub
		started[id] = sub
	}
	m.order = wanted
	m.mu.Unlock()

	// cancel waits for in-flight callbacks, which take m.mu
	for _, cancel := range stale {
		cancel()
	}
	for id, sub := range started {
		m.start(id, sub)
	}

	logger.Debug().
		Str("user_id", m.owner).
		Int("friends", len(wanted)).
		Int("started", len(started)).
		Int("stopped", len(stale)).
		Msg("Reconciled friend subscriptions")
}

func (m *Manager) start(id string, sub *subscription) {
	cancel, err := m.subscriber.Subscribe(m.ctx, id, func(doc *docmodels.Document) {
		m.apply(id, sub, doc)
	})
	if err != nil {
		m.mu.Lock()
		if m.subs[id] == sub {
			delete(m.subs, id)
		}
		m.mu.Unlock()
		m.reporter.Report("subscribeFriend", m.owner, err)
		return
	}

	m.mu.Lock()
	if m.subs[id] != sub {
		// removed while the subscription was opening
		m.mu.Unlock()
		cancel()
		return
	}
	sub.cancel = cancel
	m.mu.Unlock()
}

func (m *Manager) apply(id string, sub *subscription, doc *docmodels.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[id] != sub {
		return
	}
	if doc == nil || !doc.Exists {
		delete(m.members, id)
		return
	}
	m.members[id] = models.FromDocument(id, doc.Fields)
}

// Members returns the friends with a received snapshot, in friend list order.
func (m *Manager) Members() []models.GroupMember {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.GroupMember, 0, len(m.members))
	for _, id := range m.order {
		if member, ok := m.members[id]; ok {
			out = append(out, member)
		}
	}
	return out
}

func (m *Manager) Member(id string) (models.GroupMember, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[id]
	return member, ok
}

// ActiveSubscriptions lists the ids with a live or opening subscription.
func (m *Manager) ActiveSubscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close cancels every subscription and clears members. Later Reconcile
// calls are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	var cancels []docmodels.CancelFunc
	for _, sub := range m.subs {
		if sub.cancel != nil {
			cancels = append(cancels, sub.cancel)
		}
	}
	m.subs = make(map[string]*subscription)
	m.members = make(map[string]models.GroupMember)
	m.order = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func normalize(ids []string, owner string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == owner || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
