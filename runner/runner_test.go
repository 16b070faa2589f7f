package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/config"
	"github.com/zalgonoise/bansuri/runner"
)

func waitForStatus(t *testing.T, r *runner.Runner, want runner.Status, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if r.Snapshot().Status == want {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("status never reached %s, last seen %s", want, r.Snapshot().Status)
}

func TestRunner_Simple_StopOnFail(t *testing.T) {
	d := config.TaskDescriptor{
		Name:         "A",
		Command:      "false",
		Times:        3,
		MaxAttempts:  1,
		OnFail:       config.OnFailStop,
		SuccessCodes: []int{0},
	}

	r := runner.New(d, "")

	r.Start(context.Background())
	waitForStatus(t, r, runner.StatusFailed, 3*time.Second)

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Attempts)

	r.Stop(context.Background())
	assert.Equal(t, runner.StatusStopped, r.Snapshot().Status)
}

func TestRunner_Simple_RestartExhaustsMaxAttempts(t *testing.T) {
	d := config.TaskDescriptor{
		Name:         "B",
		Command:      "false",
		Times:        3,
		MaxAttempts:  3,
		OnFail:       config.OnFailRestart,
		SuccessCodes: []int{0},
	}

	r := runner.New(d, "", runner.WithRetryWait(200*time.Millisecond))

	r.Start(context.Background())
	waitForStatus(t, r, runner.StatusFailed, 5*time.Second)

	snap := r.Snapshot()
	assert.Equal(t, 3, snap.Attempts)
	assert.Equal(t, 3, snap.FailedAttempts)

	r.Stop(context.Background())
}

func TestRunner_Timer_RunsExactTimes(t *testing.T) {
	d := config.TaskDescriptor{
		Name:         "C",
		Command:      "true",
		HasTimer:     true,
		TimerSeconds: 1,
		Times:        2,
		MaxAttempts:  1,
		OnFail:       config.OnFailStop,
		SuccessCodes: []int{0},
	}

	r := runner.New(d, "")

	r.Start(context.Background())

	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) && r.Snapshot().Attempts < 2 {
		time.Sleep(50 * time.Millisecond)
	}

	assert.Equal(t, 2, r.Snapshot().Attempts)

	r.Stop(context.Background())
	assert.Equal(t, runner.StatusStopped, r.Snapshot().Status)
}

func TestRunner_Stop_IsIdempotent(t *testing.T) {
	d := config.TaskDescriptor{
		Name:         "D",
		Command:      "sleep 5",
		DependsOn:    []string{"X"},
		Times:        1,
		MaxAttempts:  1,
		OnFail:       config.OnFailStop,
		SuccessCodes: []int{0},
	}

	r := runner.New(d, "")

	r.Start(context.Background())
	waitForStatus(t, r, runner.StatusExecuting, time.Second)

	r.Stop(context.Background())
	r.Stop(context.Background())

	assert.Equal(t, runner.StatusStopped, r.Snapshot().Status)
}

func TestRunner_Timeout_KillsChild(t *testing.T) {
	d := config.TaskDescriptor{
		Name:           "E",
		Command:        "sleep 30",
		HasTimeout:     true,
		TimeoutSeconds: 1,
		Times:          1,
		MaxAttempts:    1,
		OnFail:         config.OnFailStop,
		SuccessCodes:   []int{0},
	}

	r := runner.New(d, "", runner.WithWatchdogTimeout(2*time.Second))

	r.Start(context.Background())
	waitForStatus(t, r, runner.StatusFailed, 6*time.Second)

	require.Equal(t, 1, r.Snapshot().Attempts)
}
