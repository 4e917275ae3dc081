package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gofrs/flock"

	"hlscache/internal/eviction"
	"hlscache/internal/logging"
	"hlscache/internal/metrics"
)

// Pass results recorded on the maintenance metric.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Cleaner runs one eviction pass.
type Cleaner interface {
	Clean(ctx context.Context) (eviction.Report, error)
}

// Options controls loop timing and election.
type Options struct {
	Interval  time.Duration
	MaxJitter time.Duration
	Backoff   time.Duration
	LockPath  string
}

// Scheduler periodically invokes a Cleaner.
type Scheduler struct {
	cleaner Cleaner
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	lock    *flock.Flock

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// New constructs a scheduler. An empty LockPath disables election.
func New(cleaner Cleaner, opts Options, logger *slog.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if cleaner == nil {
		return nil, errors.New("maintenance scheduler requires a cleaner")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("maintenance interval must be positive, got %s", opts.Interval)
	}
	if opts.MaxJitter < 0 {
		opts.MaxJitter = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = opts.Interval
	}
	s := &Scheduler{
		cleaner: cleaner,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "maintenance"),
		metrics: m,
		sleep:   sleepContext,
		jitter:  uniformJitter,
	}
	if opts.LockPath != "" {
		s.lock = flock.New(opts.LockPath)
	}
	return s, nil
}

// Run loops until ctx is cancelled. It always returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("maintenance loop started",
		logging.String(logging.FieldEventType, "maintenance_started"),
		logging.Duration("interval", s.opts.Interval),
		logging.Duration("max_jitter", s.opts.MaxJitter),
		logging.String("lock", s.opts.LockPath),
	)
	for {
		delay := s.Cycle(ctx)
		if err := s.sleep(ctx, delay); err != nil {
			s.logger.Info("maintenance loop stopped",
				logging.String(logging.FieldEventType, "maintenance_stopped"),
			)
			return err
		}
	}
}

// Cycle performs one election attempt and, when elected, one eviction pass.
// It returns how long to wait before the next cycle.
func (s *Scheduler) Cycle(ctx context.Context) time.Duration {
	if ctx.Err() != nil {
		return 0
	}
	elected, err := s.acquire()
	if err != nil {
		logging.WarnWithContext(s.logger, "maintenance lock unavailable", "maintenance_lock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "eviction skipped this cycle"),
		)
		s.metrics.MaintenancePass(ResultError)
		return s.opts.Backoff
	}
	if !elected {
		s.logger.Debug("maintenance held by another process",
			logging.String(logging.FieldEventType, "maintenance_skipped"),
		)
		s.metrics.MaintenancePass(ResultSkipped)
		return s.nextDelay()
	}
	defer s.release()

	report, err := s.runPass(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		logging.ErrorWithContext(s.logger, "maintenance pass failed", "maintenance_failed",
			logging.Error(err),
			logging.Duration("backoff", s.opts.Backoff),
			logging.String(logging.FieldErrorHint, "inspect the record store and cache roots"),
		)
		s.metrics.MaintenancePass(ResultError)
		return s.opts.Backoff
	}
	s.metrics.MaintenancePass(ResultOK)
	s.logger.Info("maintenance pass complete",
		logging.String(logging.FieldEventType, "maintenance_pass"),
		logging.Int("evicted", report.Evicted()),
		logging.Int("failures", report.Failures()),
		logging.Duration("duration", report.Duration),
	)
	return s.nextDelay()
}

func (s *Scheduler) runPass(ctx context.Context) (report eviction.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("maintenance pass panic: %v", r)
		}
	}()
	return s.cleaner.Clean(ctx)
}

func (s *Scheduler) acquire() (bool, error) {
	if s.lock == nil {
		return true, nil
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire maintenance lock: %w", err)
	}
	return ok, nil
}

func (s *Scheduler) release() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release maintenance lock", logging.Error(err))
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	return s.opts.Interval + s.jitter(s.opts.MaxJitter)
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
