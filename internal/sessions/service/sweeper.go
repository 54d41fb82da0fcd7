package service

import (
	"context"
	"sync"
	"time"

	"uniparking/pkg/logger"
)

// Sweeper periodically closes sessions whose paid time has elapsed, so the
// space returns to the pool without the driver pressing "end".
type Sweeper struct {
	service  SessionService
	interval time.Duration
	log      *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSweeper(service SessionService, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	closed, err := s.service.CloseElapsed(ctx)
	if err != nil {
		s.log.Error("Failed to close elapsed sessions", "error", err)
		return
	}
	if closed > 0 {
		s.log.Info("Closed elapsed sessions", "count", closed)
	}
}

// Run sweeps until ctx is cancelled. It is the app.Worker form of Start.
func (s *Sweeper) Run(ctx context.Context) error {
	s.wg.Add(1)
	s.loop(ctx)
	return ctx.Err()
}
