// Package logging builds the structured loggers shared by every component
// in this module, following the teacher's habit of a single small
// "construct a *slog.Logger from options" package instead of each
// component hand-rolling its own handler setup.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/zalgonoise/cfg"
)

// Format selects the slog.Handler's text encoding.
type Format int

const (
	// FormatJSON emits newline-delimited JSON records (the default).
	FormatJSON Format = iota
	// FormatText emits human-readable key=value records.
	FormatText
)

// Config gathers the options New accepts.
type Config struct {
	format Format
	source bool
	writer *os.File
}

// WithFormat selects the handler's output format.
func WithFormat(f Format) cfg.Option[Config] {
	return cfg.Register(func(c Config) Config {
		c.format = f

		return c
	})
}

// WithSource adds the source file:line of each log call to its record.
func WithSource() cfg.Option[Config] {
	return cfg.Register(func(c Config) Config {
		c.source = true

		return c
	})
}

// WithWriter sets the destination of the handler's output. Defaults to
// os.Stderr.
func WithWriter(w *os.File) cfg.Option[Config] {
	if w == nil {
		return cfg.NoOp[Config]{}
	}

	return cfg.Register(func(c Config) Config {
		c.writer = w

		return c
	})
}

// New builds a *slog.Logger from a (possibly nil) slog.Handler and the
// input options. A nil handler falls back to a handler built from the
// options (JSON-to-stderr by default).
func New(h slog.Handler, options ...cfg.Option[Config]) *slog.Logger {
	if h != nil {
		return slog.New(h)
	}

	config := cfg.New(options...)

	return slog.New(newHandler(config))
}

func newHandler(config Config) slog.Handler {
	w := config.writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{AddSource: config.source}

	if config.format == FormatText {
		return slog.NewTextHandler(w, opts)
	}

	return slog.NewJSONHandler(w, opts)
}

// NoOp returns a slog.Handler that discards every record, for components
// that were not configured with a logger.
func NoOp() slog.Handler {
	return noOpHandler{}
}

type noOpHandler struct{}

func (noOpHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noOpHandler) Handle(context.Context, slog.Record) error { return nil }
func (noOpHandler) WithAttrs(attrs []slog.Attr) slog.Handler  { return noOpHandler{} }
func (noOpHandler) WithGroup(name string) slog.Handler        { return noOpHandler{} }
