package lifeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type status struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	State string `json:"state"`
	Stats struct {
		Restart uint64 `json:"restart"`
	} `json:"stats"`
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	opts := NewOptions()
	opts.HTTP.Mode = "test"
	opts.HTTP.ActionTimeout = 5 * time.Second
	opts.Resources.SQLite.Enabled = true
	opts.Resources.SQLite.Name = "app"
	opts.Resources.SQLite.Options.Path = filepath.Join(t.TempDir(), "app.db")
	opts.Resources.SQLite.Options.Lifecycle.ProbeInterval = 0
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	d, err := NewDaemon(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func do(t *testing.T, h http.Handler, method, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestStatusAPI(t *testing.T) {
	d := newTestDaemon(t)
	h := d.Handler()

	code, _ := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, code)

	code, env := do(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "NOT_CONNECTED", env.Code)

	code, env = do(t, h, http.MethodGet, "/v1/resources")
	require.Equal(t, http.StatusOK, code)
	list := decode[[]status](t, env.Data)
	require.Len(t, list, 1)
	assert.Equal(t, "app", list[0].Name)
	assert.Equal(t, "sqlite", list[0].Type)
	assert.Equal(t, "unknown", list[0].State)

	code, env = do(t, h, http.MethodPost, "/v1/resources/app/start")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "up", decode[status](t, env.Data).State)

	code, _ = do(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodPost, "/v1/resources/app/restart")
	require.Equal(t, http.StatusOK, code, env.Message)
	restarted := decode[status](t, env.Data)
	assert.Equal(t, "up", restarted.State)
	assert.EqualValues(t, 1, restarted.Stats.Restart)

	code, env = do(t, h, http.MethodPost, "/v1/resources/app/stop")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "down", decode[status](t, env.Data).State)

	code, env = do(t, h, http.MethodGet, "/v1/resources/app")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "down", decode[status](t, env.Data).State)
}

func TestStatusAPIUnknownResource(t *testing.T) {
	h := newTestDaemon(t).Handler()

	code, env := do(t, h, http.MethodGet, "/v1/resources/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CLIENT_NOT_FOUND", env.Code)

	code, _ = do(t, h, http.MethodPost, "/v1/resources/nope/restart")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	d := newTestDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Start(ctx))

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lifeline_resource_up{resource="app",type="sqlite"} 1`)
	assert.Contains(t, rec.Body.String(), `lifeline_actions_total{action="startUp",resource="app",result="success",type="sqlite"} 1`)
	assert.Contains(t, rec.Body.String(), "lifeline_pool_capacity")
}
