package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Locker grants a named lease so only one replica runs a scheduled job.
type Locker interface {
	// TryLock reports whether the lease on key was acquired. The lease
	// expires after ttl.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// cronParser supports standard 5-field cron and descriptors like "@daily"
// and "@every 5m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule validates a schedule expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler runs maintenance jobs on cron schedules. With a Locker, a job
// fires on only one replica per lease period.
type Scheduler struct {
	cron    *cronlib.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler creates a Scheduler. locker may be nil for single-replica
// deployments.
func NewScheduler(locker Locker, lockTTL time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: logger}

	if lockTTL <= 0 {
		lockTTL = time.Minute
	}

	return &Scheduler{
		cron: cronlib.New(
			cronlib.WithParser(cronParser),
			cronlib.WithLogger(cl),
			cronlib.WithChain(cronlib.Recover(cl), cronlib.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// Add registers fn under name to run on spec.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(s.baseContext(), name, fn) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.logger.Info("scheduled job registered", slog.String("job", name), slog.String("schedule", spec))
	return nil
}

// Run starts the schedules and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// run executes one firing. Both scheduled jobs are idempotent, so a lock
// backend error runs the job rather than skipping it.
func (s *Scheduler) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	log := s.logger.With(slog.String("job", name))

	if s.locker != nil {
		acquired, err := s.locker.TryLock(ctx, "digest:schedule:"+name, s.lockTTL)
		switch {
		case err != nil:
			log.WarnContext(ctx, "schedule lock unavailable; running anyway", slog.String("error", err.Error()))
		case !acquired:
			log.DebugContext(ctx, "another replica holds the schedule lock; skipping")
			return
		}
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		log.ErrorContext(ctx, "scheduled job failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}
	log.InfoContext(ctx, "scheduled job finished", slog.Duration("duration", time.Since(start)))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
