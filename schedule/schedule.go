// Package schedule implements the cron evaluator: given a standard
// 5-field cron expression and a reference instant, it computes the next
// instant strictly after the reference at which the expression fires.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zalgonoise/cfg"
	"github.com/zalgonoise/x/errs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zalgonoise/bansuri/schedule/fieldparse"
	"github.com/zalgonoise/bansuri/schedule/resolve"
)

const (
	errDomain = errs.Domain("schedule")

	ErrEmpty   = errs.Kind("empty")
	ErrInvalid = errs.Kind("invalid")

	ErrExpression = errs.Entity("cron expression")
)

var (
	// ErrEmptyExpression is returned when constructing a Cron without a
	// cron string.
	ErrEmptyExpression = errs.WithDomain(errDomain, ErrEmpty, ErrExpression)
	// ErrInvalidExpression is returned when a cron string does not parse
	// into exactly 5 fields, or a field's grammar is invalid.
	ErrInvalidExpression = errs.WithDomain(errDomain, ErrInvalid, ErrExpression)
)

// Fields holds the five parsed resolvers of a standard cron expression.
type Fields struct {
	Minute   resolve.Resolver
	Hour     resolve.Resolver
	DayMonth resolve.Resolver
	Month    resolve.Resolver
	DayWeek  resolve.Resolver
}

// Parse splits a standard 5-field cron expression and parses each field.
//
// It returns ErrInvalidExpression if expr does not have exactly 5
// whitespace-separated fields, or if any field fails to parse.
func Parse(expr string) (Fields, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Fields{}, fmt.Errorf("%w: %q: expected 5 fields, found %d", ErrInvalidExpression, expr, len(fields))
	}

	minute, err := fieldparse.Field(fields[0], fieldparse.Minute)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: minute: %w", ErrInvalidExpression, err)
	}

	hour, err := fieldparse.Field(fields[1], fieldparse.Hour)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: hour: %w", ErrInvalidExpression, err)
	}

	dayMonth, err := fieldparse.Field(fields[2], fieldparse.DayMonth)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: day-of-month: %w", ErrInvalidExpression, err)
	}

	month, err := fieldparse.Field(fields[3], fieldparse.Month)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: month: %w", ErrInvalidExpression, err)
	}

	dayWeek, err := fieldparse.Field(fields[4], fieldparse.DayWeek)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: day-of-week: %w", ErrInvalidExpression, err)
	}

	return Fields{
		Minute:   minute,
		Hour:     hour,
		DayMonth: dayMonth,
		Month:    month,
		DayWeek:  dayWeek,
	}, nil
}

// Evaluator describes the capability of computing the next fire time of a
// schedule, from a reference instant.
type Evaluator interface {
	// Next calculates and returns the next scheduled time strictly after t.
	Next(ctx context.Context, t time.Time) time.Time
}

// Metrics describes the actions that register schedule-related metrics.
type Metrics interface {
	IncNextCalls()
}

// Cron is an Evaluator backed by a standard 5-field cron expression.
type Cron struct {
	expr   string
	fields Fields
	loc    *time.Location

	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// Next returns the next instant, strictly greater than t, at which the
// configured cron expression fires.
func (c *Cron) Next(ctx context.Context, t time.Time) time.Time {
	_, span := c.tracer.Start(ctx, "Cron.Next")
	defer span.End()

	c.metrics.IncNextCalls()

	t = t.In(c.loc).Truncate(time.Minute).Add(time.Minute)

	year, month, day := t.Date()
	hour, minute := t.Hour(), t.Minute()

	nextMinute := c.fields.Minute.Resolve(minute)
	nextHour := c.fields.Hour.Resolve(hour)
	nextDayMonth := c.fields.DayMonth.Resolve(day)
	nextMonth := c.fields.Month.Resolve(int(month))

	candidate := time.Date(
		year, month+time.Month(nextMonth), day+nextDayMonth,
		hour+nextHour, minute+nextMinute, 0, 0, c.loc,
	)

	if _, ok := c.fields.DayWeek.(resolve.Everytime); ok {
		c.logger.InfoContext(ctx, "next cron fire", slog.Time("at", candidate))
		span.SetAttributes(attribute.String("at", candidate.Format(time.RFC3339)))

		return candidate
	}

	nextWeekday := c.fields.DayWeek.Resolve(int(candidate.Weekday()))

	result := time.Date(
		candidate.Year(), candidate.Month(), candidate.Day()+nextWeekday,
		candidate.Hour(), candidate.Minute(), 0, 0, c.loc,
	)

	c.logger.InfoContext(ctx, "next cron fire", slog.Time("at", result))
	span.SetAttributes(attribute.String("at", result.Format(time.RFC3339)))

	return result
}

// Expression returns the cron string this Cron was built from.
func (c *Cron) Expression() string {
	return c.expr
}

// New creates a Cron from a standard 5-field cron expression and the
// input cfg.Option(s), validating the expression eagerly.
func New(expr string, options ...cfg.Option[*Config]) (*Cron, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyExpression
	}

	fields, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	config := cfg.Set(defaultConfig(), options...)

	return &Cron{
		expr:    expr,
		fields:  fields,
		loc:     config.loc,
		logger:  config.logger,
		metrics: config.metrics,
		tracer:  config.tracer,
	}, nil
}

// NoOp returns an Evaluator whose Next call always returns the zero time.
func NoOp() Evaluator {
	return noOpEvaluator{}
}

type noOpEvaluator struct{}

func (noOpEvaluator) Next(context.Context, time.Time) time.Time {
	return time.Time{}
}
