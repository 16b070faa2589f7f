// Package runner drives one task's lifecycle: scheduler-mode dispatch
// (simple/timer/cron), child process spawning, IO redirection, retry
// and timeout policy, and failure notification.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zalgonoise/cfg"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zalgonoise/bansuri/config"
	"github.com/zalgonoise/bansuri/notifier"
	"github.com/zalgonoise/bansuri/procgroup"
	"github.com/zalgonoise/bansuri/sampler"
	"github.com/zalgonoise/bansuri/schedule"
)

// mode is the tagged variant selecting a Runner's scheduling behavior,
// chosen once at Start and never re-evaluated mid-loop (spec design
// note: a tagged variant over a conditional chain keeps the state
// machine testable).
type mode int

const (
	modeSimple mode = iota
	modeTimer
	modeCron
)

// Runner supervises one task's execution according to its
// config.TaskDescriptor: one dedicated goroutine drives scheduling and
// process lifecycle; every other method only reads or signals it.
type Runner struct {
	descriptor config.TaskDescriptor
	notifier   notifier.Notifier
	sampler    sampler.Sampler

	watchdogTimeout time.Duration
	retryWait       time.Duration
	stopJoinWait    time.Duration

	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	handle *procgroup.Handle
}

// New creates a Runner for descriptor. globalNotifyCommand is the
// notify_command from GlobalConfig, used only if descriptor.Notify is
// "mail".
func New(descriptor config.TaskDescriptor, globalNotifyCommand string, options ...cfg.Option[*Config]) *Runner {
	c := cfg.Set(defaultConfig(), options...)

	n := c.notifier
	if descriptor.Notify == config.NotifyMail {
		n = notifier.Factory(string(descriptor.Notify), globalNotifyCommand, notifier.WithLogHandler(handlerOf(c.logger)))
	} else if n == nil {
		n = notifier.NoOp()
	}

	return &Runner{
		descriptor:      descriptor,
		notifier:        n,
		sampler:         c.sampler,
		watchdogTimeout: c.watchdogTimeout,
		retryWait:       c.retryWait,
		stopJoinWait:    c.stopJoinWait,
		logger:          c.logger,
		metrics:         c.metrics,
		tracer:          c.tracer,
		state:           State{Name: descriptor.Name, Status: StatusStopped},
	}
}

func handlerOf(logger *slog.Logger) slog.Handler {
	if logger == nil {
		return nil
	}

	return logger.Handler()
}

// Name returns the task name this Runner was built for.
func (r *Runner) Name() string {
	return r.descriptor.Name
}

// Descriptor returns the config.TaskDescriptor this Runner was built
// from.
func (r *Runner) Descriptor() config.TaskDescriptor {
	return r.descriptor
}

// Snapshot returns a read-only copy of the Runner's current state.
func (r *Runner) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Sample returns the current resource usage of this Runner's live
// child (zero if none is alive).
func (r *Runner) Sample(ctx context.Context) sampler.Sample {
	pid := r.Snapshot().PID

	return r.sampler.Sample(ctx, pid)
}

// Start launches the Runner's scheduler loop on a dedicated goroutine,
// if it is not already running.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()

	if r.cancel != nil {
		select {
		case <-r.done:
			// the previous loop already exited on its own; release it and
			// start a fresh one.
			r.cancel()
		default:
			r.mu.Unlock()

			return
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	doneCh := r.done
	r.state.Status = StatusStarting
	r.mu.Unlock()

	_, span := r.tracer.Start(ctx, "Runner.Start", trace.WithAttributes(attribute.String("name", r.descriptor.Name)))
	defer span.End()

	r.logger.InfoContext(ctx, "runner starting", slog.String("name", r.descriptor.Name))
	r.metrics.SetStatus(r.descriptor.Name, string(StatusStarting))

	go r.loop(loopCtx, doneCh)
}

// Stop requests the scheduler loop to exit, terminates any live child,
// and joins the worker goroutine within a bounded wait. It is
// idempotent: a second call on an already-stopped Runner is a no-op.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	cancel := r.cancel
	doneCh := r.done

	if cancel == nil {
		r.mu.Unlock()

		return
	}

	r.cancel = nil
	r.state.Status = StatusStopping
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "runner stopping", slog.String("name", r.descriptor.Name))

	cancel()
	r.terminateChild(ctx)

	select {
	case <-doneCh:
	case <-time.After(r.stopJoinWait):
		r.logger.WarnContext(ctx, "runner stop: worker join timed out", slog.String("name", r.descriptor.Name))
	}

	r.setStatus(StatusStopped)
	r.metrics.SetStatus(r.descriptor.Name, string(StatusStopped))
}

func (r *Runner) terminateChild(ctx context.Context) {
	r.mu.Lock()
	h := r.handle
	r.mu.Unlock()

	if h != nil {
		h.Terminate(ctx)
	}
}

func (r *Runner) loop(ctx context.Context, doneCh chan struct{}) {
	defer close(doneCh)

	r.setStatus(StatusRunning)

	switch r.selectMode() {
	case modeCron:
		r.runCron(ctx)
	case modeTimer:
		r.runTimer(ctx)
	default:
		r.runSimple(ctx)
	}
}

func (r *Runner) selectMode() mode {
	switch {
	case r.descriptor.ScheduleCron != "":
		return modeCron
	case r.descriptor.HasTimer:
		return modeTimer
	default:
		return modeSimple
	}
}

// runSimple implements spec.md §4.E's simple-mode loop: bounded by
// times, retrying on failure per on_fail/max_attempts.
func (r *Runner) runSimple(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if r.descriptor.Times > 0 && r.Snapshot().Attempts >= r.descriptor.Times {
			return
		}

		success, _ := r.execute(ctx)

		if ctx.Err() != nil {
			return
		}

		if success {
			r.setStatus(StatusCompleted)

			continue
		}

		if r.descriptor.OnFail != config.OnFailRestart {
			r.setStatus(StatusFailed)

			return
		}

		if r.Snapshot().FailedAttempts >= r.descriptor.MaxAttempts {
			r.setStatus(StatusFailed)

			return
		}

		r.setStatus(StatusWaitingRetry)

		if r.waitOrCancel(ctx, r.retryWait) {
			return
		}
	}
}

// runTimer implements spec.md §4.E's timer-mode loop: fixed interval,
// never exits on failure, still bounded by times.
func (r *Runner) runTimer(ctx context.Context) {
	interval := time.Duration(r.descriptor.TimerSeconds) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		if r.descriptor.Times > 0 && r.Snapshot().Attempts >= r.descriptor.Times {
			return
		}

		r.execute(ctx)

		if ctx.Err() != nil {
			return
		}

		r.setNextRun(time.Now().Add(interval))
		r.setStatus(StatusWaiting)

		if r.waitOrCancel(ctx, interval) {
			return
		}
	}
}

// runCron implements spec.md §4.E's cron-mode loop: times is ignored,
// failures never terminate the loop.
func (r *Runner) runCron(ctx context.Context) {
	cron, err := schedule.New(r.descriptor.ScheduleCron, schedule.WithLogHandler(handlerOf(r.logger)))
	if err != nil {
		r.logger.ErrorContext(ctx, "invalid cron expression, runner exiting",
			slog.String("name", r.descriptor.Name),
			slog.String("expr", r.descriptor.ScheduleCron),
			slog.String("error", err.Error()),
		)
		r.setStatus(StatusFailed)

		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		next := cron.Next(ctx, time.Now())
		r.setNextRun(next)
		r.setStatus(StatusWaiting)

		if r.waitUntilOrCancel(ctx, next) {
			return
		}

		if ctx.Err() != nil {
			return
		}

		r.execute(ctx)
	}
}

// waitOrCancel blocks for d or until ctx is done, reporting whether ctx
// ended the wait.
func (r *Runner) waitOrCancel(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (r *Runner) waitUntilOrCancel(ctx context.Context, at time.Time) bool {
	return r.waitOrCancel(ctx, time.Until(at))
}

// execute spawns one child, waits for completion/timeout/cancellation,
// and reports the outcome to the notifier on non-success. It always
// increments Attempts exactly once.
func (r *Runner) execute(ctx context.Context) (success bool, code int) {
	ctx, span := r.tracer.Start(ctx, "Runner.execute", trace.WithAttributes(attribute.String("name", r.descriptor.Name)))
	defer span.End()

	r.incrementAttempts()
	r.setStatus(StatusExecuting)
	r.setLastRun(time.Now())
	r.metrics.IncExecutions(r.descriptor.Name)

	start := time.Now()
	defer func() {
		r.metrics.ObserveExecutionDuration(r.descriptor.Name, time.Since(start))
	}()

	io, err := openIO(r.descriptor.WorkingDirectory, r.descriptor.Stdout, r.descriptor.Stderr)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to open IO redirection",
			slog.String("name", r.descriptor.Name), slog.String("error", err.Error()))

		return r.fail(ctx, spawnFailureCode, "", err.Error())
	}

	handle, err := procgroup.Spawn(procgroup.Spec{
		Command:          r.descriptor.Command,
		WorkingDirectory: r.descriptor.WorkingDirectory,
		Stdout:           io.stdout,
		Stderr:           io.stderr,
		Closers:          io.closers,
		WatchdogTimeout:  r.watchdogTimeout,
		Logger:           r.logger,
	})
	if err != nil {
		closeAll(io.closers)
		r.logger.ErrorContext(ctx, "failed to spawn child",
			slog.String("name", r.descriptor.Name), slog.String("error", err.Error()))

		return r.fail(ctx, spawnFailureCode, "", err.Error())
	}

	r.setHandle(handle)
	defer r.setHandle(nil)

	type result struct {
		code int
		err  error
	}

	resultCh := make(chan result, 1)

	go func() {
		c, werr := handle.Wait()
		resultCh <- result{code: c, err: werr}
	}()

	var timeoutCh <-chan time.Time

	if r.descriptor.HasTimeout {
		timer := time.NewTimer(time.Duration(r.descriptor.TimeoutSeconds) * time.Second)
		defer timer.Stop()

		timeoutCh = timer.C
	}

	select {
	case res := <-resultCh:
		if isSuccessCode(res.code, r.descriptor.SuccessCodes) {
			r.setFailedAttempts(0)
			r.logger.InfoContext(ctx, "execution completed",
				slog.String("name", r.descriptor.Name), slog.Int("code", res.code))

			return true, res.code
		}

		stdout, stderr := io.captured()

		return r.fail(ctx, res.code, stdout, stderr)

	case <-timeoutCh:
		handle.Terminate(ctx)
		<-resultCh

		return r.fail(ctx, timeoutSentinelCode, "", "Timeout exceeded")

	case <-ctx.Done():
		handle.Terminate(context.Background())
		<-resultCh

		return false, -1
	}
}

// fail records a failed execution, dispatches the notifier, and
// returns (false, code) for the caller's convenience.
func (r *Runner) fail(ctx context.Context, code int, stdout, stderr string) (bool, int) {
	r.incrementFailedAttempts()
	r.metrics.IncFailures(r.descriptor.Name)

	r.logger.WarnContext(ctx, "execution failed",
		slog.String("name", r.descriptor.Name), slog.Int("code", code))

	record := notifier.FailureRecord{
		TaskName:         r.descriptor.Name,
		Command:          r.descriptor.Command,
		WorkingDirectory: r.descriptor.WorkingDirectory,
		ReturnCode:       code,
		Attempt:          r.Snapshot().Attempts,
		MaxAttempts:      r.descriptor.MaxAttempts,
		Timestamp:        time.Now(),
		Description:      r.descriptor.Description,
		Stdout:           stdout,
		Stderr:           stderr,
	}

	if r.notifier.Notify(ctx, record) {
		r.logger.InfoContext(ctx, "notification sent", slog.String("name", r.descriptor.Name))
	}

	return false, code
}

func isSuccessCode(code int, successCodes []int) bool {
	for _, c := range successCodes {
		if c == code {
			return true
		}
	}

	return false
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	r.state.Status = s
	r.mu.Unlock()
}

func (r *Runner) setLastRun(t time.Time) {
	r.mu.Lock()
	r.state.LastRun = t
	r.mu.Unlock()
}

func (r *Runner) setNextRun(t time.Time) {
	r.mu.Lock()
	r.state.NextRun = t
	r.mu.Unlock()
}

func (r *Runner) incrementAttempts() {
	r.mu.Lock()
	r.state.Attempts++
	r.mu.Unlock()
}

func (r *Runner) incrementFailedAttempts() {
	r.mu.Lock()
	r.state.FailedAttempts++
	r.mu.Unlock()
}

func (r *Runner) setFailedAttempts(n int) {
	r.mu.Lock()
	r.state.FailedAttempts = n
	r.mu.Unlock()
}

func (r *Runner) setHandle(h *procgroup.Handle) {
	r.mu.Lock()
	r.handle = h

	if h != nil {
		r.state.PID = h.PID()
	} else {
		r.state.PID = 0
	}

	r.mu.Unlock()
}
