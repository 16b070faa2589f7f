package runner

import (
	"log/slog"
	"time"

	"github.com/zalgonoise/cfg"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zalgonoise/bansuri/logging"
	"github.com/zalgonoise/bansuri/notifier"
	"github.com/zalgonoise/bansuri/sampler"
)

const (
	defaultWatchdogTimeout = 120 * time.Second
	defaultRetryWait       = 5 * time.Second
	defaultStopJoinWait    = 5 * time.Second
	spawnFailureCode       = -1
	timeoutSentinelCode    = -2
)

// Metrics describes the actions that register Runner-related metrics.
type Metrics interface {
	IncExecutions(name string)
	IncFailures(name string)
	ObserveExecutionDuration(name string, dur time.Duration)
	SetStatus(name string, status string)
}

// Config gathers the optional dependencies of a Runner.
type Config struct {
	notifier        notifier.Notifier
	sampler         sampler.Sampler
	watchdogTimeout time.Duration
	retryWait       time.Duration
	stopJoinWait    time.Duration

	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

func defaultConfig() *Config {
	return &Config{
		notifier:        notifier.NoOp(),
		sampler:         sampler.NoOp(),
		watchdogTimeout: defaultWatchdogTimeout,
		retryWait:       defaultRetryWait,
		stopJoinWait:    defaultStopJoinWait,
		logger:          slog.New(logging.NoOp()),
		metrics:         NoOpMetrics(),
		tracer:          noop.NewTracerProvider().Tracer("no-op tracer"),
	}
}

// WithNotifier configures the Notifier invoked on non-success executions.
func WithNotifier(n notifier.Notifier) cfg.Option[*Config] {
	if n == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.notifier = n

		return c
	})
}

// WithSampler configures the resource Sampler the Runner exposes
// through Sample.
func WithSampler(s sampler.Sampler) cfg.Option[*Config] {
	if s == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.sampler = s

		return c
	})
}

// WithRetryWait overrides the default 5s simple-mode retry wait.
func WithRetryWait(d time.Duration) cfg.Option[*Config] {
	if d <= 0 {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.retryWait = d

		return c
	})
}

// WithWatchdogTimeout overrides the default 120s termination watchdog.
func WithWatchdogTimeout(d time.Duration) cfg.Option[*Config] {
	if d <= 0 {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.watchdogTimeout = d

		return c
	})
}

// WithLogHandler sets the slog.Handler used by the Runner.
func WithLogHandler(handler slog.Handler) cfg.Option[*Config] {
	if handler == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.logger = slog.New(handler)

		return c
	})
}

// WithMetrics configures the Metrics registry the Runner reports to.
func WithMetrics(m Metrics) cfg.Option[*Config] {
	if m == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.metrics = m

		return c
	})
}

// WithTrace configures the trace.Tracer used by the Runner.
func WithTrace(tracer trace.Tracer) cfg.Option[*Config] {
	if tracer == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.tracer = tracer

		return c
	})
}

// NoOpMetrics returns a Metrics implementation that discards every call.
func NoOpMetrics() Metrics {
	return noOpMetrics{}
}

type noOpMetrics struct{}

func (noOpMetrics) IncExecutions(string)                       {}
func (noOpMetrics) IncFailures(string)                         {}
func (noOpMetrics) ObserveExecutionDuration(string, time.Duration) {}
func (noOpMetrics) SetStatus(string, string)                   {}
