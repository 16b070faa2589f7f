package metrics

import (
	"context"
	"time"
)

// NoOp returns a Metrics implementation that discards every call.
func NoOp() Metrics {
	return noOpMetrics{}
}

type noOpMetrics struct{}

func (noOpMetrics) IncNextCalls()                                  {}
func (noOpMetrics) IncExecutions(string)                           {}
func (noOpMetrics) IncFailures(string)                             {}
func (noOpMetrics) ObserveExecutionDuration(string, time.Duration) {}
func (noOpMetrics) SetStatus(string, string)                       {}
func (noOpMetrics) IncReloads()                                    {}
func (noOpMetrics) IncReloadErrors()                               {}
func (noOpMetrics) SetManagedRunners(int)                          {}
func (noOpMetrics) Shutdown(context.Context) error                 { return nil }
