package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"budget-bubble-backend/internal/common/logger"
)

var ErrPersisterClosed = errors.New("persister closed")

// ErrorReporter receives failures of background remote calls.
type ErrorReporter interface {
	Report(op, userID string, err error)
}

type persistJob struct {
	op string
	fn func(ctx context.Context) error
}

// Persister runs remote writes off the caller's path. Jobs run one at a time
// in submission order; when the queue is full a job runs on its own
// goroutine and may land out of order, which last-writer-wins tolerates.
type Persister struct {
	userID   string
	timeout  time.Duration
	reporter ErrorReporter

	jobs    chan persistJob
	pending sync.WaitGroup
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPersister(userID string, queueSize int, timeout time.Duration, reporter ErrorReporter) *Persister {
	if queueSize < 1 {
		queueSize = 1
	}
	if reporter == nil {
		reporter = logger.NewReporter("persister")
	}
	p := &Persister{
		userID:   userID,
		timeout:  timeout,
		reporter: reporter,
		jobs:     make(chan persistJob, queueSize),
		done:     make(chan struct{}),
	}
	go p.worker()
	return p
}

// Submit never blocks.
func (p *Persister) Submit(op string, fn func(ctx context.Context) error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.reporter.Report(op, p.userID, ErrPersisterClosed)
		return
	}

	job := persistJob{op: op, fn: fn}
	p.pending.Add(1)
	select {
	case p.jobs <- job:
	default:
		logger.Warn().Str("user_id", p.userID).Str("operation", op).Msg("Persist queue full, writing out of band")
		go p.run(job)
	}
}

// Flush waits for every submitted job to finish.
func (p *Persister) Flush() {
	p.pending.Wait()
}

// Close drains outstanding jobs and rejects new ones.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	<-p.done
	p.pending.Wait()
}

func (p *Persister) worker() {
	defer close(p.done)
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Persister) run(job persistJob) {
	defer p.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := job.fn(ctx); err != nil {
		p.reporter.Report(job.op, p.userID, err)
		return
	}
	logger.Debug().Str("user_id", p.userID).Str("operation", job.op).Msg("Persisted")
}
