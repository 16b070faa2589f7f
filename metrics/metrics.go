// Package metrics exposes the Prometheus registry shared by the
// schedule, runner and supervisor packages, adapted from the
// teacher's single-backend metrics registry.
package metrics

import (
	"context"
	"time"

	"github.com/zalgonoise/cfg"
)

// Metrics is the union of schedule.Metrics, runner.Metrics and
// supervisor.Metrics, plus lifecycle management for the exposition
// server.
type Metrics interface {
	// schedule.Metrics
	IncNextCalls()

	// runner.Metrics
	IncExecutions(name string)
	IncFailures(name string)
	ObserveExecutionDuration(name string, dur time.Duration)
	SetStatus(name, status string)

	// supervisor.Metrics
	IncReloads()
	IncReloadErrors()
	SetManagedRunners(n int)

	Shutdown(ctx context.Context) error
}

// New builds the configured Metrics backend (Prometheus, matching the
// teacher's single-backend New).
func New(options ...cfg.Option[Config]) (Metrics, error) {
	config := cfg.New(options...)

	return newPrometheus(config.serverPort)
}
