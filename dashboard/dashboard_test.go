package dashboard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/config"
	"github.com/zalgonoise/bansuri/dashboard"
	"github.com/zalgonoise/bansuri/runner"
)

type fakeRuntime struct {
	runners map[string]*runner.Runner
}

func (f *fakeRuntime) Run(context.Context) {}

func (f *fakeRuntime) Snapshot() []runner.State {
	out := make([]runner.State, 0, len(f.runners))
	for _, r := range f.runners {
		out = append(out, r.Snapshot())
	}

	return out
}

func (f *fakeRuntime) Runner(name string) *runner.Runner {
	return f.runners[name]
}

func (f *fakeRuntime) StopAll(context.Context) {}

func newTestServer(t *testing.T, creds dashboard.Credentials) (*httptest.Server, *fakeRuntime) {
	t.Helper()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")
	require.NoError(t, os.WriteFile(logPath, []byte("line one\nline two\nline three\n"), 0o644))

	d := config.TaskDescriptor{
		Name:         "svc",
		Command:      "true",
		Times:        1,
		MaxAttempts:  1,
		OnFail:       config.OnFailStop,
		SuccessCodes: []int{0},
		Stdout:       logPath,
		Stderr:       "combined",
	}

	rt := &fakeRuntime{runners: map[string]*runner.Runner{
		"svc": runner.New(d, ""),
	}}

	srv := dashboard.New("127.0.0.1:0", rt, creds, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, rt
}

func TestHandleStatus(t *testing.T) {
	ts, _ := newTestServer(t, dashboard.Credentials{})

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	tasks, ok := body["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 1)
}

func TestHandleLogs_TailsFromEnd(t *testing.T) {
	ts, _ := newTestServer(t, dashboard.Credentials{})

	resp, err := http.Get(ts.URL + "/api/logs?task=svc&type=stdout&offset=0&limit=11")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)

	assert.Equal(t, "line three\n", string(body[:n]))
}

func TestHandleLogs_UnknownTask(t *testing.T) {
	ts, _ := newTestServer(t, dashboard.Credentials{})

	resp, err := http.Get(ts.URL + "/api/logs?task=missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleControl_UnknownTask(t *testing.T) {
	ts, _ := newTestServer(t, dashboard.Credentials{})

	resp, err := http.Post(ts.URL+"/api/control", "application/json",
		strings.NewReader(`{"task":"missing","action":"stop"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBasicAuth_RequiredWhenConfigured(t *testing.T) {
	ts, _ := newTestServer(t, dashboard.Credentials{Username: "admin", Password: "secret"})

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, `Basic realm="Bansuri Dashboard"`, resp.Header.Get("WWW-Authenticate"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")

	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
