package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
)

// --- Mock implementations shared by service tests ---

// mockRecordStore implements driven.RecordStore for testing.
type mockRecordStore struct {
	mu        sync.Mutex
	records   map[string]domain.Record
	countErr  error
	queryErr  error
	upsertErr map[string]error
	upserts   int
}

func newMockRecordStore(recs ...domain.Record) *mockRecordStore {
	m := &mockRecordStore{
		records:   make(map[string]domain.Record),
		upsertErr: make(map[string]error),
	}
	for _, r := range recs {
		m.records[r.ID()] = r.Clone()
	}
	return m
}

func (m *mockRecordStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.records)), nil
}

func (m *mockRecordStore) QueryAll(_ context.Context) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.records[id].Clone())
	}
	return out, nil
}

func (m *mockRecordStore) Upsert(_ context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if err := m.upsertErr[rec.ID()]; err != nil {
		return err
	}
	m.records[rec.ID()] = rec.Clone()
	return nil
}

func (m *mockRecordStore) Get(_ context.Context, id string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *mockRecordStore) Close() error { return nil }

func (m *mockRecordStore) get(id string) domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

// mockConnector implements driven.Connector for testing.
type mockConnector struct {
	connType     string
	kind         domain.SourceKind
	capabilities driven.ConnectorCapabilities
	records      []driven.FetchedRecord
	fetchErr     error
	validateErr  error

	mu      sync.Mutex
	windows []domain.FetchWindow
}

func (m *mockConnector) Type() string                               { return m.connType }
func (m *mockConnector) Kind() domain.SourceKind                    { return m.kind }
func (m *mockConnector) Capabilities() driven.ConnectorCapabilities { return m.capabilities }
func (m *mockConnector) Validate(_ context.Context) error           { return m.validateErr }
func (m *mockConnector) Close() error                               { return nil }

func (m *mockConnector) Fetch(_ context.Context, w domain.FetchWindow) ([]driven.FetchedRecord, error) {
	m.mu.Lock()
	m.windows = append(m.windows, w)
	m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make([]driven.FetchedRecord, len(m.records))
	for i, fr := range m.records {
		out[i] = driven.FetchedRecord{Record: fr.Record.Clone(), Attachments: fr.Attachments}
	}
	return out, nil
}

func (m *mockConnector) lastWindow() domain.FetchWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows[len(m.windows)-1]
}

// mockAnalyzer implements both analyzer ports, answering by URL.
type mockAnalyzer struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []string
}

func newMockAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{answers: make(map[string]string), errs: make(map[string]error)}
}

func (m *mockAnalyzer) analyze(url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if err := m.errs[url]; err != nil {
		return "", err
	}
	return m.answers[url], nil
}

func (m *mockAnalyzer) AnalyzeImage(_ context.Context, url string) (string, error) {
	return m.analyze(url)
}

func (m *mockAnalyzer) AnalyzeDocument(_ context.Context, url string) (string, error) {
	return m.analyze(url)
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// recordingMetrics implements driven.Metrics for testing.
type recordingMetrics struct {
	mu          sync.Mutex
	fetched     map[string]int
	failed      map[string]int
	enrichments map[string]int
	written     map[string]int
	rejected    map[string]int
	cycles      map[string]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		fetched:     make(map[string]int),
		failed:      make(map[string]int),
		enrichments: make(map[string]int),
		written:     make(map[string]int),
		rejected:    make(map[string]int),
		cycles:      make(map[string]bool),
	}
}

func (m *recordingMetrics) RecordsFetched(source string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched[source] += n
}

func (m *recordingMetrics) SourceFailed(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[source]++
}

func (m *recordingMetrics) Enrichment(class, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrichments[class+"/"+outcome]++
}

func (m *recordingMetrics) Upserted(store string, written, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written[store] += written
	m.rejected[store] += failed
}

func (m *recordingMetrics) CycleCompleted(stage string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[stage] = success
}

// mockFetchService implements driving.FetchService for testing.
type mockFetchService struct {
	mu      sync.Mutex
	calls   int
	written int
	err     error
}

func (m *mockFetchService) RunFetch(_ context.Context, _ driving.FetchOptions) (*domain.CycleReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return &domain.CycleReport{RunID: "fetch-run", Stage: domain.StageFetch}, m.err
	}
	return &domain.CycleReport{RunID: "fetch-run", Stage: domain.StageFetch, Written: m.written}, nil
}

func (m *mockFetchService) Status(_ context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Stage: domain.StageFetch}, nil
}

func (m *mockFetchService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPublishService implements driving.PublishService for testing.
type mockPublishService struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockPublishService) RunPublish(_ context.Context) (*domain.CycleReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return &domain.CycleReport{RunID: "publish-run", Stage: domain.StagePublish}, m.err
}

func (m *mockPublishService) Status(_ context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Stage: domain.StagePublish}, nil
}

// Ensure mocks implement interfaces
var (
	_ driven.RecordStore       = (*mockRecordStore)(nil)
	_ driven.Connector         = (*mockConnector)(nil)
	_ driven.ImageAnalyzer     = (*mockAnalyzer)(nil)
	_ driven.DocumentAnalyzer  = (*mockAnalyzer)(nil)
	_ driven.Metrics           = (*recordingMetrics)(nil)
	_ driving.FetchService     = (*mockFetchService)(nil)
	_ driving.PublishService   = (*mockPublishService)(nil)
)
