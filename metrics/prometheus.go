package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultPort    = 13003
	defaultTimeout = 15 * time.Second
)

// Prometheus is the shared Metrics backend for every bansuri component.
type Prometheus struct {
	server *http.Server

	scheduleNextCount      prometheus.Counter
	runnerExecCount        *prometheus.CounterVec
	runnerFailureCount     *prometheus.CounterVec
	runnerExecLatency      *prometheus.HistogramVec
	runnerStatus           *prometheus.GaugeVec
	supervisorReloadCount  prometheus.Counter
	supervisorReloadErrors prometheus.Counter
	supervisorManaged      prometheus.Gauge
}

// IncNextCalls implements schedule.Metrics.
func (m *Prometheus) IncNextCalls() {
	m.scheduleNextCount.Inc()
}

// IncExecutions implements runner.Metrics.
func (m *Prometheus) IncExecutions(name string) {
	m.runnerExecCount.WithLabelValues(name).Inc()
}

// IncFailures implements runner.Metrics.
func (m *Prometheus) IncFailures(name string) {
	m.runnerFailureCount.WithLabelValues(name).Inc()
}

// ObserveExecutionDuration implements runner.Metrics.
func (m *Prometheus) ObserveExecutionDuration(name string, dur time.Duration) {
	m.runnerExecLatency.WithLabelValues(name).Observe(dur.Seconds())
}

// SetStatus implements runner.Metrics by setting a 1.0 gauge for the
// task's current status and 0.0 for every other known status value.
func (m *Prometheus) SetStatus(name, status string) {
	for _, s := range []string{
		"stopped", "starting", "running", "executing",
		"waiting", "waiting_retry", "completed", "failed", "stopping",
	} {
		value := 0.0
		if strings.EqualFold(s, status) {
			value = 1.0
		}

		m.runnerStatus.WithLabelValues(name, s).Set(value)
	}
}

// IncReloads implements supervisor.Metrics.
func (m *Prometheus) IncReloads() {
	m.supervisorReloadCount.Inc()
}

// IncReloadErrors implements supervisor.Metrics.
func (m *Prometheus) IncReloadErrors() {
	m.supervisorReloadErrors.Inc()
}

// SetManagedRunners implements supervisor.Metrics.
func (m *Prometheus) SetManagedRunners(n int) {
	m.supervisorManaged.Set(float64(n))
}

// Registry builds and registers every collector onto a fresh
// prometheus.Registry.
func (m *Prometheus) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	for _, metric := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
			ReportErrors: false,
		}),
		m.scheduleNextCount,
		m.runnerExecCount,
		m.runnerFailureCount,
		m.runnerExecLatency,
		m.runnerStatus,
		m.supervisorReloadCount,
		m.supervisorReloadErrors,
		m.supervisorManaged,
	} {
		if err := reg.Register(metric); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// Shutdown stops the /metrics exposition server, if one was started.
func (m *Prometheus) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

// newPrometheus builds a Prometheus registry and starts its /metrics
// HTTP exposition server on port (falling back to defaultPort).
func newPrometheus(port int) (*Prometheus, error) {
	if port <= 0 {
		port = defaultPort
	}

	prom := &Prometheus{
		scheduleNextCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bansuri_schedule_next_calls_total",
			Help: "Count of cron next-fire-time calculations",
		}),
		runnerExecCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bansuri_runner_executions_total",
			Help: "Count of task executions, by task name",
		}, []string{"task"}),
		runnerFailureCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bansuri_runner_failures_total",
			Help: "Count of failed task executions, by task name",
		}, []string{"task"}),
		runnerExecLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bansuri_runner_execution_duration_seconds",
			Help:    "Histogram of task execution durations",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"task"}),
		runnerStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bansuri_runner_status",
			Help: "1 for a task's current status, 0 for every other status value",
		}, []string{"task", "status"}),
		supervisorReloadCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bansuri_supervisor_reloads_total",
			Help: "Count of successful configuration reloads",
		}),
		supervisorReloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bansuri_supervisor_reload_errors_total",
			Help: "Count of configuration reload failures",
		}),
		supervisorManaged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bansuri_supervisor_managed_runners",
			Help: "Number of runners currently managed by the supervisor",
		}),
	}

	mux := http.NewServeMux()

	reg, err := prom.Registry()
	if err != nil {
		return nil, err
	}

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	}))

	prom.server = &http.Server{
		Handler:      mux,
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  defaultTimeout,
		WriteTimeout: defaultTimeout,
	}

	go func() {
		if err := prom.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()

	return prom, nil
}
