package notifier_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/notifier"
)

func TestCommand_Notify_Success(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	n := notifier.New("printf '%s' >" + out)

	ok := n.Notify(context.Background(), notifier.FailureRecord{
		TaskName:    "A",
		Command:     "false",
		ReturnCode:  1,
		Attempt:     1,
		MaxAttempts: 3,
		Timestamp:   time.Now(),
	})

	assert.True(t, ok)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Task Failure")
	assert.Contains(t, string(data), `Task "A" has failed.`)
}

func TestCommand_Notify_NonZeroExit(t *testing.T) {
	n := notifier.New("false")

	ok := n.Notify(context.Background(), notifier.FailureRecord{TaskName: "B"})
	assert.False(t, ok)
}

func TestCommand_Notify_Timeout(t *testing.T) {
	n := notifier.New("sleep 5", notifier.WithTimeout(50*time.Millisecond))

	ok := n.Notify(context.Background(), notifier.FailureRecord{TaskName: "C"})
	assert.False(t, ok)
}

func TestFactory(t *testing.T) {
	assert.IsType(t, notifier.NoOp(), notifier.Factory("none", "mail something"))
	assert.IsType(t, notifier.NoOp(), notifier.Factory("mail", ""))
	assert.IsType(t, &notifier.Command{}, notifier.Factory("mail", "mail something"))
}
