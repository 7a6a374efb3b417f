// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/m3rciful/newsbot/core/logger"
)

// Evictor drops sessions idle for longer than ttl and reports how many went away.
type Evictor interface {
	Evict(ttl time.Duration) int
}

// Scheduler manages scheduled tasks for the application.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// New creates a scheduler running on UTC.
func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{scheduler: s}
}

// SessionSweep schedules ev.Evict(ttl) every interval.
func (s *Scheduler) SessionSweep(ev Evictor, ttl, interval time.Duration) error {
	if ev == nil {
		return fmt.Errorf("scheduler: nil evictor")
	}
	if ttl <= 0 || interval <= 0 {
		return fmt.Errorf("scheduler: ttl and interval must be positive")
	}
	_, err := s.scheduler.Every(interval).Do(func() { Sweep(ev, ttl) })
	if err != nil {
		return fmt.Errorf("scheduler: session sweep: %w", err)
	}
	logger.Info(context.Background(), logger.CompScheduler, "job.added",
		slog.String("job", "session_sweep"),
		slog.Duration("ttl", ttl),
		slog.Duration("interval", interval),
	)
	return nil
}

// Sweep runs one eviction pass.
func Sweep(ev Evictor, ttl time.Duration) int {
	start := time.Now()
	n := ev.Evict(ttl)
	level := slog.LevelDebug
	if n > 0 {
		level = slog.LevelInfo
	}
	logger.Event(context.Background(), logger.CompScheduler, level, "session_sweep",
		slog.Int("evicted", n),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return n
}

// Start begins running jobs without blocking.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
