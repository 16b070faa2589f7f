package procgroup_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/procgroup"
)

func TestSpawn_WaitSuccess(t *testing.T) {
	var stdout bytes.Buffer

	h, err := procgroup.Spawn(procgroup.Spec{
		Command: "echo hello",
		Stdout:  &stdout,
	})
	require.NoError(t, err)

	code, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "hello")
}

func TestSpawn_WaitNonZeroExit(t *testing.T) {
	h, err := procgroup.Spawn(procgroup.Spec{Command: "exit 7"})
	require.NoError(t, err)

	code, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestSpawn_InvalidCommand(t *testing.T) {
	// the shell itself starts, so Spawn succeeds; an unknown command only
	// shows up later as the shell's non-zero exit status.
	_, err := procgroup.Spawn(procgroup.Spec{Command: "bansuri-no-such-command"})
	require.NoError(t, err)
}

func TestHandle_Terminate(t *testing.T) {
	h, err := procgroup.Spawn(procgroup.Spec{Command: "sleep 30"})
	require.NoError(t, err)
	assert.True(t, h.Alive())

	done := make(chan struct{})

	go func() {
		_, _ = h.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h.Terminate(ctx)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("process was not reaped after Terminate")
	}
}
