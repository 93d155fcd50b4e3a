package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

// SchedulerConfig holds configuration for the closing scheduler
type SchedulerConfig struct {
	// Interval is how often to check whether a closing is due (default: 1h)
	Interval time.Duration

	// Day is the day of month from which the previous month may be closed (default: 1)
	Day int
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: time.Hour,
		Day:      1,
	}
}

// MonthCloser is the part of ClosingService the scheduler drives.
type MonthCloser interface {
	Run(ctx context.Context, month string, opts ...RunOption) (core.RunReport, error)
	HasMonth(ctx context.Context, month string) (bool, error)
}

// CloseDueChecker decides whether the previous month should be closed now.
type CloseDueChecker struct {
	Day int
}

// IsDue returns true if the month is still open and the target day of the
// current month has been reached. Days past the end of the month clamp to
// its last day.
func (c CloseDueChecker) IsDue(now time.Time, closed bool) bool {
	if closed {
		return false
	}
	target := c.Day
	if target < 1 {
		target = 1
	}
	lastDay := period.DaysIn(now.Year(), now.Month())
	if target > lastDay {
		target = lastDay
	}
	return now.Day() >= target
}

// Scheduler closes the previous month automatically once it is due.
type Scheduler struct {
	closer  MonthCloser
	checker CloseDueChecker
	config  SchedulerConfig
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(closer MonthCloser, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{
		closer:  closer,
		checker: CloseDueChecker{Day: config.Day},
		config:  config,
		now:     time.Now,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Scheduler started",
		log.FieldComponent, log.ComponentScheduler,
		"interval", s.config.Interval,
		"day", s.config.Day)

	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight run.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully", log.FieldComponent, log.ComponentScheduler)
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out", log.FieldComponent, log.ComponentScheduler)
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Check immediately on startup
	s.Tick(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one due check and closes the previous month when due. It
// reports whether a run was attempted.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.now()
	month := period.PreviousMonth(now).String()

	if !s.checker.IsDue(now, false) {
		return false
	}

	closed, err := s.closer.HasMonth(ctx, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check closed month",
			log.FieldComponent, log.ComponentScheduler, log.FieldMonth, month, log.FieldError, err)
		return false
	}
	if !s.checker.IsDue(now, closed) {
		slog.DebugContext(ctx, "Month already closed",
			log.FieldComponent, log.ComponentScheduler, log.FieldMonth, month)
		return false
	}

	slog.InfoContext(ctx, "Scheduled closing due",
		log.FieldComponent, log.ComponentScheduler, log.FieldMonth, month)
	if _, err := s.closer.Run(ctx, month, WithTrigger(core.TriggerScheduler)); err != nil {
		slog.ErrorContext(ctx, "Scheduled closing failed",
			log.FieldComponent, log.ComponentScheduler, log.FieldMonth, month, log.FieldError, err)
	}
	return true
}
