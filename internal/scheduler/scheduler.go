// Package scheduler bounds the number of concurrent in-flight provider jobs
// across the whole process. Excess submissions queue in FIFO order behind a
// weighted semaphore, so no waiter is starved by later arrivals.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Scheduler hands out render permits up to a fixed concurrency limit
// configured once at startup.
type Scheduler struct {
	sem    *semaphore.Weighted
	limit  int
	logger *slog.Logger

	// inFlight counts currently held permits, for logging and tests.
	inFlight atomic.Int64
}

// New creates a Scheduler with the given concurrency limit.
func New(limit int, logger *slog.Logger) (*Scheduler, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("concurrency limit must be positive, got %d", limit)
	}
	return &Scheduler{
		sem:    semaphore.NewWeighted(int64(limit)),
		limit:  limit,
		logger: logger,
	}, nil
}

// Permit represents one held scheduling slot. It must be released exactly
// once on every exit path; Release is safe to call more than once.
type Permit struct {
	release func()
	once    sync.Once
}

// Release returns the slot to the scheduler.
func (p *Permit) Release() {
	p.once.Do(p.release)
}

// Acquire blocks until a scheduling slot is available or ctx is done.
// Waiters are served in FIFO order. If ctx is canceled before a slot is
// granted the waiter is removed from the queue and ctx.Err() is returned.
func (s *Scheduler) Acquire(ctx context.Context) (*Permit, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for render slot: %w", err)
	}

	held := s.inFlight.Add(1)
	s.logger.Debug("render slot acquired",
		"in_flight", held,
		"limit", s.limit)

	return &Permit{
		release: func() {
			s.sem.Release(1)
			s.logger.Debug("render slot released",
				"in_flight", s.inFlight.Add(-1),
				"limit", s.limit)
		},
	}, nil
}

// InFlight returns the number of currently held permits.
func (s *Scheduler) InFlight() int64 {
	return s.inFlight.Load()
}
