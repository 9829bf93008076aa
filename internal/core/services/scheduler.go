package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is the number of results kept per task.
const historyRetention = 100

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: schedule %q: %w", domain.ErrInvalidInput, expr, err)
	}
	return nil
}

// NextRun returns the first activation of expr strictly after from, in UTC.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: schedule %q: %w", domain.ErrInvalidInput, expr, err)
	}
	return sched.Next(from.UTC()), nil
}

// Scheduler runs the fetch and publish stages on independent cron
// schedules. Each job runs in singleton mode; a trigger that arrives while
// the previous run is still going is skipped.
type Scheduler struct {
	config  domain.SchedulerConfig
	store   driven.SchedulerStore
	fetch   driving.FetchService
	publish driving.PublishService

	mu      sync.Mutex
	running bool
	sched   gocron.Scheduler
	jobs    map[string]gocron.Job
	runCtx  context.Context
	stopCh  chan struct{}
}

// NewScheduler creates a scheduler with configuration.
// store may be nil, in which case task state is not persisted.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	fetch driving.FetchService,
	publish driving.PublishService,
) *Scheduler {
	return &Scheduler{
		config:  config,
		store:   store,
		fetch:   fetch,
		publish: publish,
		jobs:    make(map[string]gocron.Job),
	}
}

// Start registers the configured tasks and runs them until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("scheduler disabled")
		return nil
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create scheduler: %w", err)
	}
	s.sched = sched
	s.runCtx = ctx
	s.stopCh = make(chan struct{})

	if err := s.registerAll(ctx, s.config.RunOnStart); err != nil {
		_ = sched.Shutdown()
		s.mu.Unlock()
		return err
	}
	s.running = true
	stopCh := s.stopCh
	s.mu.Unlock()

	sched.Start()
	logger.Info("scheduler started with %d tasks", len(s.jobs))

	select {
	case <-ctx.Done():
		_ = s.Stop()
		return ctx.Err()
	case <-stopCh:
		return nil
	}
}

// Stop shuts down the scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	sched := s.sched
	s.jobs = make(map[string]gocron.Job)
	s.mu.Unlock()

	return sched.Shutdown()
}

// Reschedule replaces the task configuration. Registered jobs are removed
// and the enabled tasks are registered again with their new schedules.
func (s *Scheduler) Reschedule(ctx context.Context, cfg domain.SchedulerConfig) error {
	for _, id := range []string{domain.TaskIDFetch, domain.TaskIDPublish} {
		if tc := cfg.GetTaskConfig(id); tc.Enabled {
			if err := ValidateSchedule(tc.Schedule); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	if !s.running {
		return nil
	}

	for id, job := range s.jobs {
		if err := s.sched.RemoveJob(job.ID()); err != nil {
			logger.Warn("scheduler: remove job %s: %v", id, err)
		}
		delete(s.jobs, id)
	}
	if err := s.registerAll(ctx, false); err != nil {
		return err
	}
	logger.Info("scheduler rescheduled with %d tasks", len(s.jobs))
	return nil
}

// registerAll registers every enabled task. Caller holds s.mu.
func (s *Scheduler) registerAll(ctx context.Context, runNow bool) error {
	tasks := []struct {
		id   string
		name string
	}{
		{domain.TaskIDFetch, "Fetch sources"},
		{domain.TaskIDPublish, "Publish normalised records"},
	}
	for _, t := range tasks {
		cfg := s.config.GetTaskConfig(t.id)
		if err := s.ensureTask(ctx, t.id, t.name, cfg); err != nil {
			logger.Warn("scheduler: persist task %s: %v", t.id, err)
		}
		if !cfg.Enabled {
			continue
		}
		if err := s.registerJob(t.id, cfg, runNow); err != nil {
			return err
		}
	}
	return nil
}

// registerJob adds one cron job. Caller holds s.mu.
func (s *Scheduler) registerJob(id string, cfg domain.TaskConfig, runNow bool) error {
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return err
	}

	opts := []gocron.JobOption{
		gocron.WithName(id),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if runNow {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	ctx := s.runCtx
	job, err := s.sched.NewJob(
		gocron.CronJob(cfg.Schedule, false),
		gocron.NewTask(func() {
			_, _ = s.runTask(ctx, id)
		}),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("register task %s: %w", id, err)
	}
	s.jobs[id] = job
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	if s.store == nil {
		return nil
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{ID: id, Name: name}
	}
	task.Schedule = cfg.Schedule
	task.Enabled = cfg.Enabled
	task.NextRun = time.Time{}
	if cfg.Enabled {
		if next, err := NextRun(cfg.Schedule, time.Now()); err == nil {
			task.NextRun = next
		}
	}

	return s.store.SaveTask(ctx, task)
}

// RunTask executes a task synchronously and records its result.
// It is what the cron jobs call and is exported for manual triggers.
func (s *Scheduler) RunTask(ctx context.Context, id string) (*domain.TaskResult, error) {
	return s.runTask(ctx, id)
}

func (s *Scheduler) runTask(ctx context.Context, id string) (*domain.TaskResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := &domain.TaskResult{
		TaskID:    id,
		StartedAt: time.Now(),
	}

	var report *domain.CycleReport
	var err error
	switch id {
	case domain.TaskIDFetch:
		if s.fetch == nil {
			return nil, fmt.Errorf("%w: fetch stage not configured", domain.ErrInvalidInput)
		}
		report, err = s.fetch.RunFetch(ctx, driving.FetchOptions{})
	case domain.TaskIDPublish:
		if s.publish == nil {
			return nil, fmt.Errorf("%w: publish stage not configured", domain.ErrInvalidInput)
		}
		report, err = s.publish.RunPublish(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, id)
	}

	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Info("scheduler: %s already running, skipping", id)
		return nil, err
	}

	result.EndedAt = time.Now()
	if report != nil {
		result.RunID = report.RunID
		result.ItemsProcessed = report.Written
	}
	if err != nil {
		result.Error = err.Error()
		logger.Error("scheduler: task %s failed: %v", id, err)
	} else {
		result.Success = true
	}

	s.recordResult(ctx, id, result)
	return result, err
}

func (s *Scheduler) recordResult(ctx context.Context, id string, result *domain.TaskResult) {
	if s.store == nil {
		return
	}

	task, err := s.store.GetTask(ctx, id)
	if err != nil || task == nil {
		cfg := s.currentTaskConfig(id)
		task = &domain.ScheduledTask{ID: id, Name: id, Schedule: cfg.Schedule, Enabled: cfg.Enabled}
	}
	task.LastRun = result.StartedAt
	if result.Success {
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	} else {
		task.LastError = result.Error
	}
	if next, err := NextRun(task.Schedule, result.EndedAt); err == nil {
		task.NextRun = next
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", id, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", id, err)
	}
	if err := s.store.PruneHistory(ctx, historyRetention); err != nil {
		logger.Warn("scheduler: failed to prune history: %v", err)
	}
}

func (s *Scheduler) currentTaskConfig(id string) domain.TaskConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.GetTaskConfig(id)
}
