package supervisor

import (
	"log/slog"
	"time"

	"github.com/zalgonoise/cfg"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zalgonoise/bansuri/logging"
)

const defaultCheckInterval = 5 * time.Second

// Config gathers the optional dependencies of a Supervisor.
type Config struct {
	checkInterval time.Duration

	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

func defaultConfig() *Config {
	return &Config{
		checkInterval: defaultCheckInterval,
		logger:        slog.New(logging.NoOp()),
		metrics:       NoOpMetrics(),
		tracer:        noop.NewTracerProvider().Tracer("no-op tracer"),
	}
}

// WithCheckInterval overrides the default 5s config reload interval.
func WithCheckInterval(d time.Duration) cfg.Option[*Config] {
	if d <= 0 {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.checkInterval = d

		return c
	})
}

// WithLogHandler sets the slog.Handler used by the Supervisor.
func WithLogHandler(handler slog.Handler) cfg.Option[*Config] {
	if handler == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.logger = slog.New(handler)

		return c
	})
}

// WithMetrics configures the Metrics registry the Supervisor reports
// to.
func WithMetrics(m Metrics) cfg.Option[*Config] {
	if m == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.metrics = m

		return c
	})
}

// WithTrace configures the trace.Tracer used by the Supervisor.
func WithTrace(tracer trace.Tracer) cfg.Option[*Config] {
	if tracer == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.tracer = tracer

		return c
	})
}

// NoOpMetrics returns a Metrics implementation that discards every
// call.
func NoOpMetrics() Metrics {
	return noOpMetrics{}
}

type noOpMetrics struct{}

func (noOpMetrics) IncReloads()           {}
func (noOpMetrics) IncReloadErrors()      {}
func (noOpMetrics) SetManagedRunners(int) {}
