package cli

import (
	"context"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
)

type mockFetchService struct {
	report *domain.CycleReport
	err    error
	opts   []driving.FetchOptions
}

func (m *mockFetchService) RunFetch(_ context.Context, opts driving.FetchOptions) (*domain.CycleReport, error) {
	m.opts = append(m.opts, opts)
	return m.report, m.err
}

func (m *mockFetchService) Status(_ context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Stage: domain.StageFetch}, nil
}

type mockPublishService struct {
	report *domain.CycleReport
	err    error
	calls  int
}

func (m *mockPublishService) RunPublish(_ context.Context) (*domain.CycleReport, error) {
	m.calls++
	return m.report, m.err
}

func (m *mockPublishService) Status(_ context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Stage: domain.StagePublish}, nil
}

type mockScheduler struct {
	mu          sync.Mutex
	started     bool
	stopped     bool
	rescheduled []domain.SchedulerConfig
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) Reschedule(_ context.Context, cfg domain.SchedulerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rescheduled = append(m.rescheduled, cfg)
	return nil
}

func (m *mockScheduler) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

type mockTaskStore struct {
	tasks   []domain.ScheduledTask
	history map[string][]domain.TaskResult
}

func (m *mockTaskStore) GetTask(_ context.Context, id string) (*domain.ScheduledTask, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &m.tasks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTaskStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, nil
}

func (m *mockTaskStore) SaveTask(_ context.Context, _ *domain.ScheduledTask) error {
	return nil
}

func (m *mockTaskStore) RecordResult(_ context.Context, _ *domain.TaskResult) error {
	return nil
}

func (m *mockTaskStore) GetTaskHistory(_ context.Context, id string, limit int) ([]domain.TaskResult, error) {
	h := m.history[id]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (m *mockTaskStore) PruneHistory(_ context.Context, _ int) error {
	return nil
}

type mockValidator struct {
	results map[string]error
}

func (m *mockValidator) Validate(_ context.Context) map[string]error {
	return m.results
}

type testServices struct {
	fetch     *mockFetchService
	publish   *mockPublishService
	scheduler *mockScheduler
	tasks     *mockTaskStore
	validator *mockValidator
}

// setupServicesTest installs mocks in place of the wired services and
// resets command flags. The returned func restores the previous state.
func setupServicesTest() (*testServices, func()) {
	ts := &testServices{
		fetch:     &mockFetchService{},
		publish:   &mockPublishService{},
		scheduler: &mockScheduler{},
		tasks:     &mockTaskStore{},
		validator: &mockValidator{},
	}

	oldFetch, oldPublish := fetchService, publishService
	oldScheduler, oldTasks, oldValidator := taskScheduler, taskStore, validator
	oldConfig, oldStore := appConfig, configStore

	fetchService = ts.fetch
	publishService = ts.publish
	taskScheduler = ts.scheduler
	taskStore = ts.tasks
	validator = ts.validator
	appConfig, configStore = nil, nil

	fetchFull, flattenRecord = false, false
	serveAddr, serveNoAPI, serveWatch = "", false, true
	statusHistory = 5

	return ts, func() {
		fetchService, publishService = oldFetch, oldPublish
		taskScheduler, taskStore, validator = oldScheduler, oldTasks, oldValidator
		appConfig, configStore = oldConfig, oldStore
	}
}
