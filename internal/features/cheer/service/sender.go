package service

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "budget-bubble-backend/internal/common/errors"
	"budget-bubble-backend/internal/common/logger"
	profile "budget-bubble-backend/internal/features/profile/models"
)

// Merger merge-writes fields of a remote document.
type Merger interface {
	Merge(ctx context.Context, id string, patch map[string]any) error
}

// Sender writes cheers onto other users' documents.
type Sender struct {
	gateway Merger
	now     func() time.Time

	mu   sync.Mutex
	last int64
}

func NewSender(gateway Merger, now func() time.Time) *Sender {
	if now == nil {
		now = time.Now
	}
	return &Sender{gateway: gateway, now: now}
}

// SendCheer stamps latestCheerAt on the target's document with a unix
// millisecond value that never repeats or goes backwards within this process.
func (s *Sender) SendCheer(ctx context.Context, fromID, targetID string) (int64, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return 0, apperrors.NewValidationError("target_id", "Target user is required")
	}
	if targetID == fromID {
		return 0, apperrors.NewValidationError("target_id", "Cannot cheer yourself")
	}

	at := s.next()
	if err := s.gateway.Merge(ctx, targetID, map[string]any{profile.FieldLatestCheerAt: at}); err != nil {
		return 0, err
	}

	logger.Info().
		Str("user_id", fromID).
		Str("target_id", targetID).
		Int64("cheer_at", at).
		Msg("Cheer sent")
	return at, nil
}

func (s *Sender) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UnixMilli()
	if at <= s.last {
		at = s.last + 1
	}
	s.last = at
	return at
}
