// Package config loads and validates the JSON task configuration file,
// producing an immutable GlobalConfig of TaskDescriptors.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalgonoise/x/errs"
)

const (
	errDomain = errs.Domain("config")

	ErrIO         = errs.Kind("io")
	ErrParse      = errs.Kind("parse")
	ErrValidation = errs.Kind("validation")

	ErrFile       = errs.Entity("config file")
	ErrDescriptor = errs.Entity("task descriptor")
	ErrField      = errs.Entity("field")
	ErrRule       = errs.Entity("validation rule")
)

var (
	// ErrNotFound is returned when the configuration file does not exist.
	ErrNotFound = errs.WithDomain(errDomain, ErrIO, ErrFile)
	// ErrMalformedJSON is returned when the configuration file is not
	// valid JSON.
	ErrMalformedJSON = errs.WithDomain(errDomain, ErrParse, ErrFile)
	// ErrMissingField is returned when a descriptor lacks a required
	// field.
	ErrMissingField = errs.WithDomain(errDomain, ErrValidation, ErrField)
	// ErrInvalidRule is returned when a descriptor violates the
	// schedule/timer/depends_on rule.
	ErrInvalidRule = errs.WithDomain(errDomain, ErrValidation, ErrRule)
)

// GlobalConfig is the parsed, validated configuration: a version tag,
// the ordered list of task descriptors, and the shell command template
// the notifier invokes.
type GlobalConfig struct {
	Version       string
	Scripts       []TaskDescriptor
	NotifyCommand string
}

type rawConfig struct {
	Version       string           `json:"version"`
	NotifyCommand string           `json:"notify_command"`
	Scripts       []map[string]any `json:"scripts"`
}

// Load reads and parses the JSON configuration file at path, normalizing
// keys, validating every descriptor, and returning a GlobalConfig with
// descriptors in input order.
//
// It returns ErrNotFound if path does not exist, ErrMalformedJSON if the
// file is not valid JSON, or a validation error wrapping
// ErrMissingField/ErrInvalidRule for the first offending descriptor.
func Load(path string, options ...Option) (*GlobalConfig, error) {
	config := newConfig(options...)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}

	var raw rawConfig

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedJSON, path, err)
	}

	scripts := make([]TaskDescriptor, 0, len(raw.Scripts))

	for _, item := range raw.Scripts {
		normalized := normalizeKeys(item)

		b, err := json.Marshal(normalized)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedJSON, path, err)
		}

		var rd rawDescriptor

		if err := json.Unmarshal(b, &rd); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedJSON, path, err)
		}

		descriptor, warnings := rd.toDescriptor()

		for _, w := range warnings {
			config.logger.DebugContext(context.Background(), w)
		}

		if err := descriptor.validate(); err != nil {
			return nil, err
		}

		scripts = append(scripts, descriptor)
	}

	return &GlobalConfig{
		Version:       raw.Version,
		Scripts:       scripts,
		NotifyCommand: raw.NotifyCommand,
	}, nil
}

// workingDirectoryAlias is the one recognized alias outside the
// straightforward kebab-to-snake mapping (spec.md §6).
const workingDirectoryAlias = "where"

// normalizeKeys canonicalizes hyphenated keys to snake_case and folds
// the "where" alias into "working_directory". Unrecognized keys are
// left as-is; rawDescriptor's json.Unmarshal silently drops them.
func normalizeKeys(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))

	for k, v := range item {
		key := strings.ReplaceAll(k, "-", "_")

		if key == workingDirectoryAlias {
			key = "working_directory"
		}

		out[key] = v
	}

	return out
}

// Option configures a Load call.
type Option func(*loaderConfig)

type loaderConfig struct {
	logger *slog.Logger
}

func newConfig(options ...Option) *loaderConfig {
	c := &loaderConfig{logger: slog.New(slog.DiscardHandler)}

	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// WithLogHandler logs one Debug line per unrecognized field value
// (unknown on_fail/notify) encountered while loading.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *loaderConfig) {
		if handler != nil {
			c.logger = slog.New(handler)
		}
	}
}
