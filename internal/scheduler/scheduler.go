// Package scheduler runs the publish sweep on a cron schedule inside the
// server process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"studio/internal/logger"
	"studio/internal/publish"
)

// Sweeper runs one sweep. *publish.Service satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) (*publish.SweepResult, error)
}

// Scheduler triggers sweeps on a five-field cron expression
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler running sweeper on spec. Each run is bounded by timeout.
func New(spec string, sweeper Sweeper, timeout time.Duration) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	s := &Scheduler{cron: c, sweeper: sweeper, timeout: timeout}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running sweeps in the background
func (s *Scheduler) Start() {
	logger.Info("Starting publish scheduler")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.cancel()
	logger.Info("Publish scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		logger.Warn("Scheduled sweep failed", "error", err)
		return
	}
	logger.Debug("Scheduled sweep done", "published", res.Published, "failed", len(res.Errors), "message", res.Message)
}
