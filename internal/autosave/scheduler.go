// Package autosave runs the periodic background trigger that gives
// every open document a chance to auto-save.
package autosave

import (
	"context"
	"sync"
	"time"

	"dockeep/internal/docstore"
)

// DefaultPeriod is how often the scheduler ticks. The per-document
// auto-save interval is gated separately inside the service, so the
// tick period can be tuned independently of the minimum auto-save
// spacing.
const DefaultPeriod = 30 * time.Second

// Scheduler drives the background auto-save loop. Each tick gives
// every open document a chance to auto-save; the service applies the
// per-document interval gate and swallows failures, so a tick can
// never break the editing session.
type Scheduler struct {
	service *docstore.Service
	period  time.Duration
	logger  docstore.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler creates a scheduler ticking every period; period <= 0
// selects DefaultPeriod.
func NewScheduler(service *docstore.Service, period time.Duration, logger docstore.Logger) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Scheduler{
		service: service,
		period:  period,
		logger:  logger,
	}
}

// Start launches the background loop. It returns immediately; the
// loop runs until Stop is called or ctx is cancelled. Starting an
// already running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(ctx, s.done)
	s.logger.Info("auto-save scheduler started", "period", s.period)
}

// Stop cancels the loop and waits for the in-flight tick, if any, to
// finish. Stopping a scheduler that is not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.started = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("auto-save scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.service.AutoSaveAll(ctx)
		}
	}
}
