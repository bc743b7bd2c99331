// Package scheduler runs feed tasks on cron triggers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Entry pairs a cron trigger with a task.
type Entry struct {
	Name string
	Spec string
	Task Task
}

// Scheduler owns a table of entries and a start/stop lifecycle.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries []Entry
	ids     map[string]cron.EntryID
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New builds a scheduler using standard five-field cron specs in UTC.
// Each run gets at most timeout; zero means no limit.
func New(timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: timeout,
		ids:     make(map[string]cron.EntryID),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add registers an entry. Names must be unique.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("entry name is required")
	}
	if e.Task == nil {
		return fmt.Errorf("entry %s: task is nil", e.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[e.Name]; ok {
		return fmt.Errorf("entry %s already registered", e.Name)
	}

	id, err := s.cron.AddFunc(e.Spec, func() {
		if err := s.run(s.baseCtx, e); err != nil {
			s.logger.Error("scheduled task failed", zap.String("entry", e.Name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("entry %s: parse %q: %w", e.Name, e.Spec, err)
	}
	s.ids[e.Name] = id
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns the registered entries in registration order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Next returns the first activation of a named entry after from, in UTC.
func (s *Scheduler) Next(name string, from time.Time) (time.Time, bool) {
	entry, ok := s.lookup(name)
	if !ok {
		return time.Time{}, false
	}
	sched, err := cron.ParseStandard(entry.Spec)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(from.UTC()), true
}

// RunNow runs a named entry synchronously, outside its trigger.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	entry, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("entry %s not registered", name)
	}
	return s.run(ctx, entry)
}

func (s *Scheduler) lookup(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Start begins firing triggers.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Entries())))
}

// Stop stops triggers, cancels running tasks, and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running tasks: %w", ctx.Err())
	}
}

func (s *Scheduler) run(ctx context.Context, e Entry) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	s.logger.Info("scheduled task start", zap.String("entry", e.Name))
	err := e.Task(ctx)
	s.logger.Info("scheduled task done",
		zap.String("entry", e.Name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("ok", err == nil),
	)
	return err
}
