package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"studio/internal/publish"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(context.Context) (*publish.SweepResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &publish.SweepResult{Message: publish.NothingDueMessage}, nil
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	tests := []string{"", "every minute", "* * * * * *"}
	for _, spec := range tests {
		if _, err := New(spec, &countingSweeper{}, time.Second); err == nil {
			t.Errorf("New(%q) expected error", spec)
		}
	}
}

func TestRunCallsSweeper(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New("*/5 * * * *", sw, time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.run()
	if sw.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", sw.calls.Load())
	}

	sw.err = errors.New("db down")
	s.run()
	if sw.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", sw.calls.Load())
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("* * * * *", &countingSweeper{}, time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if s.ctx.Err() == nil {
		t.Error("run context should be cancelled after Stop")
	}
}
