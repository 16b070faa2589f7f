// Package supervisor owns the name→Runner map: it reloads configuration
// on an interval, diffs it against the running set, and starts, stops,
// or replaces runner.Runner instances accordingly.
package supervisor

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/zalgonoise/cfg"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zalgonoise/bansuri/config"
	"github.com/zalgonoise/bansuri/notifier"
	"github.com/zalgonoise/bansuri/runner"
	"github.com/zalgonoise/bansuri/sampler"
)

// Runtime describes the capability of running the Supervisor's
// diff/start/stop/replace loop until its context is cancelled.
type Runtime interface {
	// Run blocks, reloading config on Config's check interval, until ctx
	// is done. It is meant to be called from a dedicated goroutine.
	Run(ctx context.Context)
	// Snapshot returns a read-only view of every currently managed
	// Runner.
	Snapshot() []runner.State
	// Runner returns the live Runner for name, or nil if not managed.
	Runner(name string) *runner.Runner
	// StopAll stops every managed Runner concurrently and waits for all
	// to settle.
	StopAll(ctx context.Context)
}

// Metrics describes the actions that register Supervisor-related
// metrics.
type Metrics interface {
	IncReloads()
	IncReloadErrors()
	SetManagedRunners(n int)
}

type supervisor struct {
	configPath    string
	checkInterval time.Duration

	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer

	mu      sync.RWMutex
	runners map[string]*managedRunner
}

type managedRunner struct {
	descriptor config.TaskDescriptor
	instance   *runner.Runner
}

// New creates a Supervisor runtime rooted at configPath.
func New(configPath string, options ...cfg.Option[*Config]) Runtime {
	c := cfg.Set(defaultConfig(), options...)

	return &supervisor{
		configPath:    configPath,
		checkInterval: c.checkInterval,
		logger:        c.logger,
		metrics:       c.metrics,
		tracer:        c.tracer,
		runners:       make(map[string]*managedRunner),
	}
}

// Run reloads configuration every check interval, diffs it against the
// currently managed Runners, and starts/stops/replaces as needed, until
// ctx is done. On shutdown it stops every managed Runner.
func (s *supervisor) Run(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Supervisor.Run")
	defer span.End()

	s.logger.InfoContext(ctx, "supervisor starting", slog.String("config", s.configPath))

	s.tick(ctx)

	changes, err := config.Watch(ctx, s.configPath, s.logger)
	if err != nil {
		s.logger.WarnContext(ctx, "config watch unavailable, falling back to polling only",
			slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "supervisor shutting down")
			s.StopAll(context.Background())

			return

		case <-ticker.C:
			s.tick(ctx)

		case _, ok := <-changes:
			if !ok {
				changes = nil

				continue
			}

			s.logger.InfoContext(ctx, "config change detected, reloading early")
			s.tick(ctx)
			ticker.Reset(s.checkInterval)
		}
	}
}

// tick performs one reload-and-diff cycle. A load error is logged and
// the tick is skipped, keeping the prior Runners untouched.
func (s *supervisor) tick(ctx context.Context) {
	global, err := config.Load(s.configPath, config.WithLogHandler(s.logger.Handler()))
	if err != nil {
		s.metrics.IncReloadErrors()
		s.logger.ErrorContext(ctx, "config reload failed, skipping tick", slog.String("error", err.Error()))

		return
	}

	s.metrics.IncReloads()
	s.reconcile(ctx, global)
}

func (s *supervisor) reconcile(ctx context.Context, global *config.GlobalConfig) {
	desired := make(map[string]config.TaskDescriptor, len(global.Scripts))
	for _, d := range global.Scripts {
		desired[d.Name] = d
	}

	s.mu.Lock()
	current := make(map[string]config.TaskDescriptor, len(s.runners))
	for name, mr := range s.runners {
		current[name] = mr.descriptor
	}
	s.mu.Unlock()

	var toStop, toStart []string

	for name := range current {
		if _, ok := desired[name]; !ok {
			toStop = append(toStop, name)
		}
	}

	for name, d := range desired {
		prior, ok := current[name]
		if !ok {
			toStart = append(toStart, name)

			continue
		}

		if !descriptorsEqual(prior, d) {
			toStop = append(toStop, name)
			toStart = append(toStart, name)
		}
	}

	for _, name := range toStop {
		s.stopAndRemove(ctx, name)
	}

	for _, name := range toStart {
		s.startNew(ctx, desired[name], global.NotifyCommand)
	}

	s.mu.RLock()
	count := len(s.runners)
	s.mu.RUnlock()

	s.metrics.SetManagedRunners(count)
}

func descriptorsEqual(a, b config.TaskDescriptor) bool {
	return reflect.DeepEqual(a, b)
}

func (s *supervisor) stopAndRemove(ctx context.Context, name string) {
	s.mu.Lock()
	mr, ok := s.runners[name]
	delete(s.runners, name)
	s.mu.Unlock()

	if !ok {
		return
	}

	s.logger.InfoContext(ctx, "stopping runner", slog.String("name", name))
	mr.instance.Stop(ctx)
}

func (s *supervisor) startNew(ctx context.Context, d config.TaskDescriptor, notifyCommand string) {
	s.logger.InfoContext(ctx, "starting runner", slog.String("name", d.Name))

	instance := runner.New(d, notifyCommand,
		runner.WithLogHandler(s.logger.Handler()),
		runner.WithNotifier(notifier.Factory(string(d.Notify), notifyCommand)),
		runner.WithSampler(sampler.New(s.logger)),
	)

	s.mu.Lock()
	s.runners[d.Name] = &managedRunner{descriptor: d, instance: instance}
	s.mu.Unlock()

	instance.Start(ctx)
}

// Snapshot returns a read-only view of every currently managed Runner.
func (s *supervisor) Snapshot() []runner.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]runner.State, 0, len(s.runners))
	for _, mr := range s.runners {
		out = append(out, mr.instance.Snapshot())
	}

	return out
}

// Runner returns the live Runner for name, or nil if not managed.
func (s *supervisor) Runner(name string) *runner.Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mr, ok := s.runners[name]
	if !ok {
		return nil
	}

	return mr.instance
}

// StopAll stops every managed Runner concurrently (grounded on the
// teacher's executor.Multi fan-out) and waits for all to settle.
func (s *supervisor) StopAll(ctx context.Context) {
	s.mu.RLock()
	instances := make([]*runner.Runner, 0, len(s.runners))
	for _, mr := range s.runners {
		instances = append(instances, mr.instance)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup

	for _, inst := range instances {
		wg.Add(1)

		go func(r *runner.Runner) {
			defer wg.Done()

			r.Stop(ctx)
		}(inst)
	}

	wg.Wait()
}

// NoOp returns a Runtime whose Run call returns immediately.
func NoOp() Runtime {
	return noOpSupervisor{}
}

type noOpSupervisor struct{}

func (noOpSupervisor) Run(context.Context)          {}
func (noOpSupervisor) Snapshot() []runner.State     { return nil }
func (noOpSupervisor) Runner(string) *runner.Runner { return nil }
func (noOpSupervisor) StopAll(context.Context)      {}
