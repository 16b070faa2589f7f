// Package procgroup spawns a shell command as the leader of a new
// session/process group and terminates the whole group in two phases:
// a graceful signal, then a forced kill if the group outlives a
// watchdog window.
package procgroup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/zalgonoise/x/errs"

	"github.com/zalgonoise/bansuri/logging"
)

const (
	errDomain = errs.Domain("procgroup")

	ErrSpawn      = errs.Kind("spawn")
	ErrTerminate  = errs.Kind("terminate")
	ErrEntity     = errs.Entity("child process")

	pollInterval          = time.Second
	defaultWatchdogTimeout = 120 * time.Second
)

// ErrSpawnFailed is returned when the shell could not be started.
var ErrSpawnFailed = errs.WithDomain(errDomain, ErrSpawn, ErrEntity)

// Handle owns one spawned child and the OS resources opened for its IO
// redirection. It is not safe for concurrent use from more than one
// goroutine driving its lifecycle, matching the Runner's single-worker
// ownership rule.
type Handle struct {
	cmd      *exec.Cmd
	closers  []io.Closer
	pid      int
	watchdog time.Duration

	logger *slog.Logger

	mu   sync.Mutex
	done bool
}

// Spec describes one child spawn.
type Spec struct {
	Command          string
	WorkingDirectory string
	Stdout           io.Writer
	Stderr           io.Writer
	Closers          []io.Closer
	WatchdogTimeout  time.Duration
	Logger           *slog.Logger
}

// Spawn starts command through a system shell, detached into a new
// session so the child becomes the leader of its own process group.
func Spawn(spec Spec) (*Handle, error) {
	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Dir = spec.WorkingDirectory
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	logger := spec.Logger
	if logger == nil {
		logger = slog.New(logging.NoOp())
	}

	watchdog := spec.WatchdogTimeout
	if watchdog <= 0 {
		watchdog = defaultWatchdogTimeout
	}

	return &Handle{
		cmd:      cmd,
		closers:  spec.Closers,
		pid:      cmd.Process.Pid,
		watchdog: watchdog,
		logger:   logger,
	}, nil
}

// PID returns the spawned child's process ID, which is also its
// process group ID (the child is the session leader).
func (h *Handle) PID() int {
	return h.pid
}

// Alive reports whether the child has not yet been reaped.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return !h.done
}

// Wait blocks until the child exits, returning its exit code and any
// wait error. It releases every IO closer registered at Spawn time. It
// is safe to call Wait exactly once per Handle.
func (h *Handle) Wait() (int, error) {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.done = true
	h.mu.Unlock()

	h.closeAll()

	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee

		return true
	}

	return false
}

func (h *Handle) closeAll() {
	for _, c := range h.closers {
		_ = c.Close()
	}
}

// Terminate runs the two-phase termination protocol against the whole
// process group: SIGTERM, poll at 1s cadence for up to the configured
// watchdog timeout, then SIGKILL if the group is still alive.
//
// Errors signalling the group (typically a race where the child exited
// between the poll and the signal) are logged and swallowed: the
// operation is idempotent and best-effort.
func (h *Handle) Terminate(ctx context.Context) {
	if !h.Alive() {
		return
	}

	pgid := -h.pid

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		h.logger.WarnContext(ctx, "terminate signal failed",
			slog.Int("pid", h.pid), slog.String("error", err.Error()))
	}

	deadline := time.Now().Add(h.watchdog)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

waitLoop:
	for {
		if !h.Alive() {
			return
		}

		if time.Now().After(deadline) {
			break waitLoop
		}

		select {
		case <-ctx.Done():
			break waitLoop
		case <-ticker.C:
		}
	}

	if !h.Alive() {
		return
	}

	h.logger.WarnContext(ctx, "forcing shutdown", slog.Int("pid", h.pid))

	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil {
		h.logger.WarnContext(ctx, "kill signal failed",
			slog.Int("pid", h.pid), slog.String("error", err.Error()))
	}
}
