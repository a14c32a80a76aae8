package service

import (
	"context"
	"sync"
	"time"

	"budget-bubble-backend/internal/common/logger"
)

// ExpirationService closes sessions whose clients stopped calling, so
// abandoned logins do not hold subscriptions forever.
type ExpirationService struct {
	ctx      context.Context
	cancel   context.CancelFunc
	registry *Registry
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewExpirationService(registry *Registry, idle, interval time.Duration) *ExpirationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpirationService{
		ctx:      ctx,
		cancel:   cancel,
		registry: registry,
		idle:     idle,
		interval: interval,
		now:      time.Now,
	}
}

func (s *ExpirationService) Start() {
	logger.Info().
		Dur("idle_timeout", s.idle).
		Dur("interval", s.interval).
		Msg("Starting session expiration service")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Sweep closes the sessions idle for longer than the timeout.
func (s *ExpirationService) Sweep() []string {
	expired := s.registry.ExpireIdle(s.now().Add(-s.idle))
	if len(expired) > 0 {
		logger.Info().Strs("user_ids", expired).Msg("Expired idle sessions")
	}
	return expired
}

// Stop waits for the sweeper goroutine to exit.
func (s *ExpirationService) Stop() {
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("Session expiration service stopped")
}
