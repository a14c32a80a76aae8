package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"budget-bubble-backend/internal/common/logger"
	cheer "budget-bubble-backend/internal/features/cheer/service"
	docmodels "budget-bubble-backend/internal/features/document/models"
	friendsvc "budget-bubble-backend/internal/features/friends/service"
	profile "budget-bubble-backend/internal/features/profile/models"
	profilesvc "budget-bubble-backend/internal/features/profile/service"
)

// DocumentGateway is what a session needs from the remote document gateway.
type DocumentGateway interface {
	profilesvc.DocumentGateway
	friendsvc.Subscriber
}

type ErrorReporter interface {
	Report(op, userID string, err error)
}

// Settings tune every session a registry opens.
type Settings struct {
	PersistQueueSize int
	PersistTimeout   time.Duration
	Reporter         ErrorReporter
	Theme            profilesvc.ThemeApplier
}

// Session wires one user's store, friend subscriptions and cheer channel
// together for the lifetime of a login.
type Session struct {
	userID       string
	store        *profilesvc.Store
	friends      *friendsvc.Manager
	cheers       *cheer.Channel
	celebrations *cheer.Recorder
	reporter     ErrorReporter

	lastActive atomic.Int64

	mu         sync.Mutex
	cancelSelf docmodels.CancelFunc
	closed     bool
}

// Open loads the user's profile, starts friend reconciliation and opens the
// user's own subscription. A failed self subscription is reported and the
// session continues without cheers.
func Open(ctx context.Context, userID string, gateway DocumentGateway, settings Settings) (*Session, error) {
	reporter := settings.Reporter
	if reporter == nil {
		reporter = logger.NewReporter("session")
	}

	persister := profilesvc.NewPersister(userID, settings.PersistQueueSize, settings.PersistTimeout, reporter)
	var opts []profilesvc.Option
	if settings.Theme != nil {
		opts = append(opts, profilesvc.WithThemeApplier(settings.Theme))
	}

	recorder := cheer.NewRecorder()
	s := &Session{
		userID:       userID,
		store:        profilesvc.NewStore(userID, gateway, persister, opts...),
		friends:      friendsvc.NewManager(ctx, userID, gateway, reporter),
		cheers:       cheer.NewChannel(userID, recorder),
		celebrations: recorder,
		reporter:     reporter,
	}
	s.Touch(time.Now())
	s.store.OnFriendsChanged(s.friends.Reconcile)

	if err := s.store.LoadData(ctx); err != nil {
		s.friends.Close()
		s.store.Close()
		return nil, err
	}

	cancel, err := gateway.Subscribe(context.WithoutCancel(ctx), userID, s.onOwnSnapshot)
	if err != nil {
		reporter.Report("subscribeSelf", userID, err)
	} else {
		s.mu.Lock()
		s.cancelSelf = cancel
		s.mu.Unlock()
	}

	logger.Info().
		Str("user_id", userID).
		Int("friends", len(s.store.FriendIDs())).
		Msg("Session opened")
	return s, nil
}

func (s *Session) onOwnSnapshot(doc *docmodels.Document) {
	s.cheers.ObserveDocument(doc)
	if doc != nil && doc.Exists {
		s.store.ObserveCheer(docmodels.Field[int64](doc.Fields, profile.FieldLatestCheerAt, 0))
	}
}

// Touch marks the session as used at now.
func (s *Session) Touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) Store() *profilesvc.Store {
	return s.store
}

func (s *Session) Friends() *friendsvc.Manager {
	return s.friends
}

func (s *Session) Cheers() *cheer.Channel {
	return s.cheers
}

func (s *Session) Celebrations() *cheer.Recorder {
	return s.celebrations
}

// Close tears down every subscription and drains pending writes. No
// snapshot callback runs after it returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancelSelf
	s.cancelSelf = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.friends.Close()
	s.store.Close()

	logger.Info().Str("user_id", s.userID).Msg("Session closed")
}
