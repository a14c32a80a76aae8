package service

import (
	"sync"
	"time"

	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/features/cheer/models"
)

const maxPendingCelebrations = 32

// Recorder queues fired celebrations until the client collects them.
type Recorder struct {
	mu      sync.Mutex
	pending []models.Celebration
	now     func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) Celebrate(userID string, cheerAt int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, models.Celebration{
		UserID:  userID,
		CheerAt: cheerAt,
		FiredAt: r.now().UTC(),
	})
	if len(r.pending) > maxPendingCelebrations {
		r.pending = r.pending[len(r.pending)-maxPendingCelebrations:]
	}
	logger.Info().Str("user_id", userID).Int64("cheer_at", cheerAt).Msg("Cheer received")
}

// Drain returns and clears the queued celebrations.
func (r *Recorder) Drain() []models.Celebration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.pending
	r.pending = nil
	if out == nil {
		out = []models.Celebration{}
	}
	return out
}
