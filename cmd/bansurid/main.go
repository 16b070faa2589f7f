package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zalgonoise/bansuri/dashboard"
	"github.com/zalgonoise/bansuri/logging"
	"github.com/zalgonoise/bansuri/metrics"
	"github.com/zalgonoise/bansuri/supervisor"
	"github.com/zalgonoise/bansuri/tracing"
)

var (
	configPath    string
	dashboardAddr string
	metricsPort   int
	logFormat     string
	dashboardUser string
	dashboardPass string
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bansurid",
		Short: "bansurid runs and supervises shell tasks declared in a JSON config file",
		RunE:  run,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "./scripts.json", "path to the task config file")
	root.PersistentFlags().StringVar(&dashboardAddr, "dashboard-addr", ":8080", "dashboard listen address")
	root.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "prometheus /metrics exposition port (0 disables)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log output format: json or text")
	root.PersistentFlags().StringVar(&dashboardUser, "dashboard-user", "", "dashboard basic auth username (empty disables auth)")
	root.PersistentFlags().StringVar(&dashboardPass, "dashboard-pass", "", "dashboard basic auth password")

	return root
}

func run(cmd *cobra.Command, _ []string) error {
	format := logging.FormatJSON
	if logFormat == "text" {
		format = logging.FormatText
	}

	logger := logging.New(nil, logging.WithFormat(format), logging.WithSource())

	var (
		metricsReg metrics.Metrics
		err        error
	)

	if metricsPort > 0 {
		metricsReg, err = metrics.New(metrics.WithPort(metricsPort))
		if err != nil {
			return fmt.Errorf("failed to start metrics registry: %w", err)
		}
	} else {
		metricsReg = metrics.NoOp()
	}

	tracer := tracing.Tracer()

	sup := supervisor.New(configPath,
		supervisor.WithLogHandler(logger.Handler()),
		supervisor.WithMetrics(metricsReg),
		supervisor.WithTrace(tracer),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	listenSignals(cancel)

	board := dashboard.New(dashboardAddr, sup, dashboard.Credentials{
		Username: dashboardUser,
		Password: dashboardPass,
	}, logger)

	errCh := make(chan error, 1)
	supDone := make(chan struct{})

	go func() {
		defer close(supDone)

		sup.Run(ctx)
	}()

	go func() {
		errCh <- board.Run(ctx)
	}()

	logger.InfoContext(ctx, "bansurid started",
		slog.String("config", configPath), slog.String("dashboard_addr", dashboardAddr))

	select {
	case <-ctx.Done():
		logger.InfoContext(context.Background(), "bansurid shutting down")
	case err := <-errCh:
		if err != nil {
			logger.ErrorContext(context.Background(), "dashboard server error", slog.String("error", err.Error()))
		}

		cancel()
	}

	// sup.Run stops every runner once ctx is done; wait for it.
	<-supDone

	if err := metricsReg.Shutdown(context.Background()); err != nil {
		logger.WarnContext(context.Background(), "metrics shutdown error", slog.String("error", err.Error()))
	}

	return nil
}

// listenSignals cancels cancel on SIGINT/SIGTERM.
func listenSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancel()
	}()
}
