package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	apperrors "budget-bubble-backend/internal/common/errors"
	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/common/validation"
	cheer "budget-bubble-backend/internal/features/cheer/service"
	currencysvc "budget-bubble-backend/internal/features/currency/service"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry holds at most one open session per user id.
type Registry struct {
	gateway   DocumentGateway
	converter *currencysvc.Converter
	sender    *cheer.Sender
	settings  Settings

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(gateway DocumentGateway, converter *currencysvc.Converter, settings Settings) *Registry {
	return &Registry{
		gateway:   gateway,
		converter: converter,
		sender:    cheer.NewSender(gateway, nil),
		settings:  settings,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

func (r *Registry) Converter() *currencysvc.Converter {
	return r.converter
}

// Login returns the user's open session or opens a new one.
func (r *Registry) Login(ctx context.Context, userID string) (*Session, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, apperrors.NewValidationError("user_id", err.Error())
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrCodeConflict, "Server is shutting down")
	}
	if s, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		s.Touch(r.now())
		return s, nil
	}
	r.mu.Unlock()

	s, err := Open(ctx, userID, r.gateway, r.settings)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[userID]; ok || r.closed {
		r.mu.Unlock()
		// lost a race with a concurrent login or shutdown
		s.Close()
		if existing == nil {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "Server is shutting down")
		}
		return existing, nil
	}
	r.sessions[userID] = s
	r.mu.Unlock()

	return s, nil
}

// Get returns the user's open session and marks it active.
func (r *Registry) Get(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, apperrors.Wrap(ErrSessionNotFound, apperrors.ErrCodeSessionNotFound, "No open session").
			WithDetail("user_id", userID)
	}
	s.Touch(r.now())
	return s, nil
}

// Logout closes the session and removes it.
func (r *Registry) Logout(userID string) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if !ok {
		return apperrors.Wrap(ErrSessionNotFound, apperrors.ErrCodeSessionNotFound, "No open session").
			WithDetail("user_id", userID)
	}
	s.Close()
	return nil
}

// SendCheer writes a cheer onto the target's document on behalf of fromID.
func (r *Registry) SendCheer(ctx context.Context, fromID, targetID string) (int64, error) {
	return r.sender.SendCheer(ctx, fromID, targetID)
}

func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExpireIdle closes every session not used since cutoff and returns their
// user ids.
func (r *Registry) ExpireIdle(cutoff time.Time) []string {
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, s := range idle {
		s.Close()
		ids = append(ids, s.UserID())
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session and refuses new logins.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	logger.Info().Int("sessions", len(sessions)).Msg("All sessions closed")
}
