package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbsync/internal/core/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestFetchCmd_Use(t *testing.T) {
	assert.Equal(t, "fetch", fetchCmd.Use)
	assert.Equal(t, "true", fetchCmd.Annotations["services"])
}

func TestFetchCmd_PrintsReport(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()

	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ts.fetch.report = &domain.CycleReport{
		Stage:     domain.StageFetch,
		StartedAt: started,
		EndedAt:   started.Add(1500 * time.Millisecond),
		Sources: []domain.SourceReport{
			{Name: "jira", Window: domain.IncrementalWindow(started), Fetched: 4},
			{Name: "confluence", Window: domain.FullWindow(), Error: "connection refused"},
		},
		Read:    4,
		Written: 3,
		Failed:  1,
	}

	out, err := execute(t, "", "fetch")
	require.NoError(t, err)

	assert.Contains(t, out, "Fetching from sources...")
	assert.Contains(t, out, "Fetch complete (incremental): 4 read, 3 written, 1 failed in 1.5s")
	assert.Contains(t, out, "since 2024-03-09  4 records")
	assert.Contains(t, out, "FAILED: connection refused")
	require.Len(t, ts.fetch.opts, 1)
	assert.False(t, ts.fetch.opts[0].ForceFull)
}

func TestFetchCmd_Full(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()
	ts.fetch.report = &domain.CycleReport{Stage: domain.StageFetch, FullSync: true}

	out, err := execute(t, "", "fetch", "--full")
	require.NoError(t, err)

	assert.Contains(t, out, "Fetch complete (full)")
	require.Len(t, ts.fetch.opts, 1)
	assert.True(t, ts.fetch.opts[0].ForceFull)
}

func TestFetchCmd_Error(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()
	ts.fetch.err = domain.ErrStoreUnavailable

	_, err := execute(t, "", "fetch")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "fetch failed")
}

func TestPublishCmd(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()
	ts.publish.report = &domain.CycleReport{Stage: domain.StagePublish, Read: 7, Written: 7}

	out, err := execute(t, "", "publish")
	require.NoError(t, err)

	assert.Equal(t, 1, ts.publish.calls)
	assert.Contains(t, out, "Publish complete: 7 read, 7 written, 0 failed")
}

func TestPublishCmd_Error(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()
	ts.publish.err = errors.New("target unreachable")

	_, err := execute(t, "", "publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed: target unreachable")
}

func TestCheckCmd(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()
	ts.validator.results = map[string]error{
		"jira":       nil,
		"confluence": domain.ErrAuthInvalid,
	}

	out, err := execute(t, "", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 sources failed validation")

	assert.Less(t, strings.Index(out, "confluence"), strings.Index(out, "jira"), "sorted by name")
	assert.Contains(t, out, fmt.Sprintf("  %-12s ok", "jira"))
	assert.Contains(t, out, "FAILED: "+domain.ErrAuthInvalid.Error())
}

func TestCheckCmd_NoSources(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	out, err := execute(t, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "No sources configured.")
}

func TestStatusCmd_Empty(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No scheduled tasks recorded yet")
}

func TestStatusCmd_TasksAndHistory(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()

	last := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ts.tasks.tasks = []domain.ScheduledTask{
		{ID: domain.TaskIDFetch, Name: "Fetch sources", Schedule: "0 * * * *", Enabled: true, LastRun: last, LastError: "jira: 401"},
		{ID: domain.TaskIDPublish, Name: "Publish records", Schedule: "30 * * * *"},
	}
	ts.tasks.history = map[string][]domain.TaskResult{
		domain.TaskIDFetch: {
			{TaskID: domain.TaskIDFetch, StartedAt: last, EndedAt: last.Add(2 * time.Second), Success: true, ItemsProcessed: 12},
			{TaskID: domain.TaskIDFetch, StartedAt: last.Add(-time.Hour), EndedAt: last.Add(-time.Hour), Error: "boom"},
		},
	}

	out, err := execute(t, "", "status", "-n", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Fetch sources (fetch) [enabled]")
	assert.Contains(t, out, "Publish records (publish) [disabled]")
	assert.Contains(t, out, "Schedule:     30 * * * *")
	assert.Contains(t, out, "Last error:   jira: 401")
	assert.Contains(t, out, "Last success: never")
	assert.Contains(t, out, "  12 records  ok")
	assert.NotContains(t, out, "failed: boom", "history is limited by -n")
}

const adfDoc = `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello"},{"type":"text","text":"world"}]},{"type":"paragraph","content":[{"type":"text","text":"Bye"}]}]}`

func TestFlattenCmd_Stdin(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	out, err := execute(t, adfDoc, "flatten")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nBye\n", out)
}

func TestFlattenCmd_File(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(adfDoc), 0o600))

	out, err := execute(t, "", "flatten", path)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nBye\n", out)
}

func TestFlattenCmd_Record(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	rec := `{"id":"1","source_kind":"tracker","fields":{"summary":"S","description":` + adfDoc + `}}`
	out, err := execute(t, rec, "flatten", "--record", "-")
	require.NoError(t, err)

	assert.Contains(t, out, `"summary": "S"`)
	assert.Contains(t, out, `"description": "Hello world\nBye"`)
}

func TestFlattenCmd_InvalidJSON(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	_, err := execute(t, `{"type":`, "flatten")
	assert.Error(t, err)
}

func TestFlattenCmd_MissingFile(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()

	_, err := execute(t, "", "flatten", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.json")
}

func TestServeCmd_SchedulerOnly(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"serve", "--no-http"})
	defer rootCmd.SetArgs(nil)

	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	require.Eventually(t, ts.scheduler.isStarted, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, buf.String(), "Scheduler running.")
	assert.NotContains(t, buf.String(), "HTTP triggers")
	assert.True(t, ts.scheduler.stopped)
}

func TestServeCmd_MissingConfigDirKeepsRunning(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()

	store, err := file.Open(filepath.Join(t.TempDir(), "missing", "config.toml"))
	require.NoError(t, err)
	configStore = store

	ctx, cancel := context.WithCancel(context.Background())
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"serve", "--no-http"})
	defer rootCmd.SetArgs(nil)

	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	require.Eventually(t, ts.scheduler.isStarted, 2*time.Second, 10*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.True(t, ts.scheduler.stopped)
}

func TestReloadSchedule(t *testing.T) {
	ts, cleanup := setupServicesTest()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scheduler.fetch]\nschedule = \"0 * * * *\"\n"), 0o600))
	store, err := file.Open(path)
	require.NoError(t, err)
	configStore = store

	require.NoError(t, os.WriteFile(path, []byte("[scheduler.fetch]\nschedule = \"*/5 * * * *\"\n"), 0o600))
	reloadSchedule(context.Background())

	require.Len(t, ts.scheduler.rescheduled, 1)
	assert.Equal(t, "*/5 * * * *", ts.scheduler.rescheduled[0].TaskConfigs[domain.TaskIDFetch].Schedule)
}

func TestSetup_RejectsUnknownLogFormat(t *testing.T) {
	_, cleanup := setupServicesTest()
	defer cleanup()
	defer func() { logFormat = "text" }()

	_, err := execute(t, "", "version", "--log-format", "xml")
	assert.Error(t, err)
}
