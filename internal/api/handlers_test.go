package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/coin-collector/internal/collector"
	"github.com/maltedev/coin-collector/internal/cycle"
	"github.com/maltedev/coin-collector/internal/runs"
)

type blockingRunner struct {
	release chan struct{}
}

func (r *blockingRunner) MaxAttempts() int { return 3 }

func (r *blockingRunner) Run(ctx context.Context, observer cycle.Observer) (*collector.Report, error) {
	select {
	case <-r.release:
		return &collector.Report{Outcome: cycle.OutcomeSuccess, Attempts: 1, LoggedIn: true}, nil
	case <-ctx.Done():
		return &collector.Report{}, ctx.Err()
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *runs.Manager, *blockingRunner) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &blockingRunner{release: make(chan struct{})}
	manager := runs.NewManager(runner, nil, nil, logger)
	srv := httptest.NewServer(NewRouter(NewHandlers(manager, logger)))

	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown(context.Background())
	})
	return srv, manager, runner
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStartRun_AcceptedThenConflict(t *testing.T) {
	srv, manager, runner := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started StartRunResponse
	decode(t, resp, &started)
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, runs.StatusRunning, started.Status)

	resp, err = http.Post(srv.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]string
	decode(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, started.RunID, health["active_run"])

	close(runner.release)
	require.Eventually(t, func() bool {
		_, busy := manager.Active()
		return !busy
	}, time.Second, 10*time.Millisecond)

	resp, err = http.Get(srv.URL + "/api/v1/runs/" + started.RunID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var run runs.Run
	decode(t, resp, &run)
	assert.Equal(t, runs.StatusSuccess, run.Status)
	assert.True(t, run.LoggedIn)
	assert.True(t, run.Collected)
	assert.NotNil(t, run.CompletedAt)
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/runs/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "run not found", body["error"])
}

func TestListRuns(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	var empty []runs.Run
	decode(t, resp, &empty)
	assert.Empty(t, empty)

	resp, err = http.Post(srv.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var list []runs.Run
	decode(t, resp, &list)
	assert.Len(t, list, 1)
}
