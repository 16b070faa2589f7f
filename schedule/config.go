package schedule

import (
	"log/slog"
	"time"

	"github.com/zalgonoise/cfg"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zalgonoise/bansuri/logging"
)

// Config gathers the optional dependencies of a Cron evaluator.
type Config struct {
	loc *time.Location

	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

func defaultConfig() *Config {
	return &Config{
		loc:     time.Local,
		logger:  slog.New(logging.NoOp()),
		metrics: NoOpMetrics(),
		tracer:  noop.NewTracerProvider().Tracer("no-op tracer"),
	}
}

// WithLocation sets the time.Location the Cron evaluator resolves times in.
func WithLocation(loc *time.Location) cfg.Option[*Config] {
	if loc == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.loc = loc

		return c
	})
}

// WithLogHandler decorates the Cron evaluator with logging, using the
// input slog.Handler.
func WithLogHandler(handler slog.Handler) cfg.Option[*Config] {
	if handler == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.logger = slog.New(handler)

		return c
	})
}

// WithMetrics decorates the Cron evaluator with the input metrics registry.
func WithMetrics(m Metrics) cfg.Option[*Config] {
	if m == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.metrics = m

		return c
	})
}

// WithTrace decorates the Cron evaluator with the input trace.Tracer.
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

func (noOpMetrics) IncNextCalls() {}
