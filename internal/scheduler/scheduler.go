// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts 6-field expressions (with seconds), 5-field expressions and
// descriptors such as "@hourly" or "@every 10m".
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// JobFunc is a scheduled task. ctx is cancelled when the scheduler stops.
type JobFunc func(ctx context.Context)

// Scheduler manages recurring jobs.
type Scheduler struct {
	mu sync.Mutex

	cron    *cron.Cron
	logger  *slog.Logger
	entries map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New() *Scheduler {
	s := &Scheduler{
		logger:  slog.Default(),
		entries: make(map[string]cron.EntryID),
	}
	s.cron = s.newCron()
	return s
}

// WithLogger sets a custom logger. Call before adding jobs.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
	s.cron = s.newCron()
	s.entries = make(map[string]cron.EntryID)
	return s
}

func (s *Scheduler) newCron() *cron.Cron {
	l := cronLogger{logger: s.logger}
	return cron.New(
		cron.WithParser(Parser),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// Validate reports whether expr is a schedule the scheduler accepts.
func Validate(expr string) error {
	if _, err := Parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Add registers fn under name. A job never overlaps with itself.
func (s *Scheduler) Add(name, expr string, fn JobFunc) error {
	sched, err := Parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", expr, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}

	s.entries[name] = s.cron.Schedule(sched, cron.FuncJob(func() {
		ctx := s.runContext()
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		s.logger.Debug("scheduled job started", slog.String("job", name))
		fn(ctx)
		s.logger.Debug("scheduled job finished",
			slog.String("job", name),
			slog.Duration("duration", time.Since(start)),
		)
	}))

	s.logger.Info("job scheduled",
		slog.String("job", name),
		slog.String("schedule", expr),
	)
	return nil
}

// Next returns the next run time of the named job once the scheduler is running.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.ctx
}

// Start begins running jobs in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.entries)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	s.mu.Lock()
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
