// Package notifier formats failure records and dispatches them through a
// configured shell command.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/zalgonoise/cfg"

	"github.com/zalgonoise/bansuri/logging"
)

const defaultTimeout = 30 * time.Second

// FailureRecord carries everything a Notifier needs to describe one
// failed execution.
type FailureRecord struct {
	TaskName         string
	Command          string
	WorkingDirectory string
	ReturnCode       int
	Attempt          int
	MaxAttempts      int
	Timestamp        time.Time
	Description      string
	Stdout           string
	Stderr           string
}

// Notifier describes the capability of reporting a FailureRecord,
// returning whether the report was delivered.
type Notifier interface {
	Notify(ctx context.Context, record FailureRecord) bool
}

// Command is a Notifier that formats the record as a multi-line message
// and invokes a configured shell command with it as a single,
// shell-quoted argument.
type Command struct {
	command string
	timeout time.Duration

	logger *slog.Logger
}

// New creates a Command notifier. notifyCommand is the shell command
// template the formatted message is appended to as a single argument.
func New(notifyCommand string, options ...cfg.Option[*Config]) *Command {
	config := cfg.Set(defaultConfig(), options...)

	return &Command{
		command: notifyCommand,
		timeout: config.timeout,
		logger:  config.logger,
	}
}

// Notify formats record and runs the configured command, returning true
// iff the command exits 0. Timeouts, non-zero exits, and spawn errors
// all return false.
func (c *Command) Notify(ctx context.Context, record FailureRecord) bool {
	if c.command == "" {
		return false
	}

	message := formatMessage(record)

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fullCmd := c.command + " " + shellQuote(message)

	cmd := exec.CommandContext(execCtx, "sh", "-c", fullCmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.InfoContext(ctx, "dispatching failure notification",
		slog.String("task", record.TaskName),
		slog.String("command", c.command),
	)

	err := cmd.Run()

	switch {
	case execCtx.Err() != nil:
		c.logger.WarnContext(ctx, "notifier timed out",
			slog.String("task", record.TaskName),
		)

		return false
	case err != nil:
		c.logger.WarnContext(ctx, "notifier command failed",
			slog.String("task", record.TaskName),
			slog.String("error", err.Error()),
			slog.String("stderr", stderr.String()),
		)

		return false
	}

	return true
}

// formatMessage renders a human-readable, multi-line failure message,
// grounded on the original shell-command notifier's layout.
func formatMessage(r FailureRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Task Failure ===\n\n")
	fmt.Fprintf(&b, "Task %q has failed.\n\n", r.TaskName)
	fmt.Fprintf(&b, "--- Task Details ---\n")
	fmt.Fprintf(&b, "Name:              %s\n", r.TaskName)
	fmt.Fprintf(&b, "Command:           %s\n", r.Command)

	wd := r.WorkingDirectory
	if wd == "" {
		wd = "N/A"
	}

	fmt.Fprintf(&b, "Working Directory: %s\n", wd)
	fmt.Fprintf(&b, "Return Code:       %d\n", r.ReturnCode)
	fmt.Fprintf(&b, "Attempt:           %d/%d\n", r.Attempt, r.MaxAttempts)
	fmt.Fprintf(&b, "Timestamp:         %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))

	if r.Description != "" {
		fmt.Fprintf(&b, "Description:       %s\n", r.Description)
	}

	if r.Stdout != "" {
		fmt.Fprintf(&b, "\n--- Output ---\n%s\n", strings.TrimSpace(r.Stdout))
	}

	if r.Stderr != "" {
		fmt.Fprintf(&b, "\n--- Error ---\n%s\n", strings.TrimSpace(r.Stderr))
	}

	fmt.Fprintf(&b, "\n---\nThis is an automated message from bansuri.\n")

	return b.String()
}

// shellQuote single-quotes s for shell passage, escaping embedded single
// quotes the POSIX way: close the quote, emit an escaped quote, reopen.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// NoOp returns a Notifier that never delivers and never blocks,
// for tasks where notify is "none" or no notify_command is configured.
func NoOp() Notifier {
	return noOpNotifier{}
}

type noOpNotifier struct{}

func (noOpNotifier) Notify(context.Context, FailureRecord) bool { return false }

// Factory builds the correct Notifier variant for a descriptor's notify
// field, per spec.md §4.D: the Runner instantiates a notifier iff
// notify=="mail" and notifyCommand is set.
func Factory(notify string, notifyCommand string, options ...cfg.Option[*Config]) Notifier {
	if notify != "mail" || notifyCommand == "" {
		return NoOp()
	}

	return New(notifyCommand, options...)
}

// Config gathers the optional dependencies of a Command notifier.
type Config struct {
	timeout time.Duration
	logger  *slog.Logger
}

func defaultConfig() *Config {
	return &Config{
		timeout: defaultTimeout,
		logger:  slog.New(logging.NoOp()),
	}
}

// WithTimeout overrides the default 30s per-invocation timeout.
func WithTimeout(d time.Duration) cfg.Option[*Config] {
	if d <= 0 {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.timeout = d

		return c
	})
}

// WithLogHandler sets the slog.Handler used by the notifier.
func WithLogHandler(handler slog.Handler) cfg.Option[*Config] {
	if handler == nil {
		return cfg.NoOp[*Config]{}
	}

	return cfg.Register(func(c *Config) *Config {
		c.logger = slog.New(handler)

		return c
	})
}
