package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightwatch/nightwatch/pkg/action"
	"github.com/nightwatch/nightwatch/pkg/manager"
	"github.com/nightwatch/nightwatch/pkg/provider"
	"github.com/nightwatch/nightwatch/pkg/task"
	"github.com/nightwatch/nightwatch/pkg/taskloader"
)

type staticProvider struct{}

func (staticProvider) Process(ctx context.Context) (any, error) { return 1, nil }

type noopAction struct{}

func (noopAction) Process(ctx context.Context, report action.Report) error { return nil }

const taskFile = `alpha:
  period_success: 60s
  period_failed: 5m
  providers:
    - static:
        condition: "="
        threshold: 1
beta:
  period_success: 2m
  period_failed: 5m
  providers:
    - static:
        condition: "="
        threshold: 1
`

// newTestServer starts a manager over a temp task directory and returns the
// httptest server wrapping the control API.
func newTestServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()

	tasksDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tasksDir, "tasks.yml"), []byte(taskFile), 0o644))

	providers := provider.NewRegistry(t.TempDir())
	providers.Register("static", provider.Spec{
		New: func(cfg map[string]any) (provider.Provider, error) { return staticProvider{}, nil },
	})
	actions := action.NewRegistry(t.TempDir())
	actions.Register("noop", action.Spec{
		New: func(cfg map[string]any) (action.Action, error) { return noopAction{}, nil },
	})

	mgr := manager.New(taskloader.NewLoader(tasksDir), providers, actions)
	require.NoError(t, mgr.Start())
	t.Cleanup(func() { mgr.Stop(true) })

	srv := httptest.NewServer(NewServer(mgr).Handler())
	t.Cleanup(srv.Close)
	return srv, mgr
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestDaemonStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodGet, "/api/v1/night-watch/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.JSONEq(t, `{"status":"Running"}`, string(body))
}

func TestDaemonPauseResume(t *testing.T) {
	srv, mgr := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPut, "/api/v1/night-watch/pause", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"Stopped"}`, string(body))
	assert.False(t, mgr.IsRunning())

	// Pausing twice is an error.
	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/night-watch/pause", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, body = doRequest(t, srv, http.MethodPut, "/api/v1/night-watch/resume", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"Running"}`, string(body))
}

func TestDaemonReload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPut, "/api/v1/night-watch/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"reloaded"}`, string(body))
}

func TestListTasks(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []task.Status
	require.NoError(t, json.Unmarshal(body, &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "alpha", statuses[0].Status.Name)
	assert.Equal(t, "beta", statuses[1].Status.Name)
	assert.Equal(t, "1m", statuses[0].Status.Period)
	assert.True(t, statuses[0].Status.Enabled)
}

func TestGetTask(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodGet, "/api/v1/task/alpha", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status task.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "alpha", status.Status.Name)
	assert.Equal(t, "60s", status.Config.PeriodSuccess)

	resp, body = doRequest(t, srv, http.MethodGet, "/api/v1/task/ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "error_msg")
}

func TestTaskAction(t *testing.T) {
	srv, mgr := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPut, "/api/v1/task/alpha/pause", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status task.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.False(t, status.Status.Enabled)

	alpha, err := mgr.GetTask("alpha")
	require.NoError(t, err)
	assert.False(t, alpha.IsEnabled())

	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/task/alpha/resume", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, alpha.IsEnabled())

	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/task/alpha/explode", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/task/ghost/pause", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBulkTaskAction(t *testing.T) {
	srv, mgr := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPut, "/api/v1/tasks/pause",
		`[{"name":"alpha"},{"name":"beta"}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"success"}`, string(body))
	assert.Empty(t, mgr.EnabledTasks())

	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/tasks/resume",
		`[{"name":"alpha"},{"name":"beta"}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, mgr.EnabledTasks(), 2)

	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/tasks/explode", `[]`)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodPut, "/api/v1/tasks/pause", `not json`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAddTasks(t *testing.T) {
	srv, mgr := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPost, "/api/v1/task", `{
		"filename": "extra.yml",
		"tasks": {
			"gamma": {
				"period_success": "30s",
				"period_failed": "5m",
				"providers": [{"static": {"condition": "=", "threshold": 1}}]
			}
		}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []task.Status
	require.NoError(t, json.Unmarshal(body, &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "gamma", statuses[0].Status.Name)

	_, err := mgr.GetTask("gamma")
	assert.NoError(t, err)
}

func TestAddTasksInvalidConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	// Missing period_failed fails validation with 501.
	resp, body := doRequest(t, srv, http.MethodPost, "/api/v1/task", `{
		"filename": "extra.yml",
		"tasks": {
			"gamma": {
				"period_success": "30s",
				"providers": [{"static": {"condition": "=", "threshold": 1}}]
			}
		}
	}`)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Contains(t, string(body), "period_failed")

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/task", `not json`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = doRequest(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "nightwatch_")
}
