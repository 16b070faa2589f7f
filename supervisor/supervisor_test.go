package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/supervisor"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.json")

	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestSupervisor_StartsAndStopsRunners(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1",
		"scripts": [
			{ "name": "svc", "command": "sleep 5", "timer": "1s" }
		]
	}`)

	sup := supervisor.New(path, supervisor.WithCheckInterval(100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go sup.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sup.Runner("svc") == nil {
		time.Sleep(20 * time.Millisecond)
	}

	require.NotNil(t, sup.Runner("svc"))

	cancel()
	time.Sleep(200 * time.Millisecond)
}

func TestSupervisor_ReplacesChangedDescriptor(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1",
		"scripts": [ { "name": "E", "command": "true", "timer": "5s" } ]
	}`)

	sup := supervisor.New(path, supervisor.WithCheckInterval(100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sup.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sup.Runner("E") == nil {
		time.Sleep(20 * time.Millisecond)
	}

	first := sup.Runner("E")
	require.NotNil(t, first)

	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "1",
		"scripts": [ { "name": "E", "command": "false", "timer": "5s" } ]
	}`), 0o644))

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sup.Runner("E") == first {
		time.Sleep(20 * time.Millisecond)
	}

	second := sup.Runner("E")
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
}
