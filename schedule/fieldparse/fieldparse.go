// Package fieldparse turns the textual fields of a standard 5-field cron
// expression into resolve.Resolver values. It purposefully does not use a
// lexer/parser state machine (the teacher's schedule/cronlex does, backed
// by github.com/zalgonoise/parse and github.com/zalgonoise/lex): a single
// cron field's grammar (wildcard, step, range, list, literal) is regular
// enough that a direct string parser is clearer and carries one fewer
// dependency for no loss of correctness. See DESIGN.md for the tradeoff.
package fieldparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zalgonoise/bansuri/schedule/resolve"
)

// Bounds describes the valid [Min, Max] range for a cron field.
type Bounds struct {
	Min, Max int
}

var (
	Minute   = Bounds{0, 59}
	Hour     = Bounds{0, 23}
	DayMonth = Bounds{1, 31}
	Month    = Bounds{1, 12}
	DayWeek  = Bounds{0, 7}
)

// ring returns how many distinct positions a field wraps around, the
// Max every resolve.Resolver built here is given: every value in
// [Min, Max], except that day-of-week 7 is another name for 0.
func (b Bounds) ring() int {
	if b == DayWeek {
		return 7
	}

	return b.Max - b.Min + 1
}

// Field parses a single cron field (e.g. "*", "*/15", "1-5", "1,3,5", "7")
// into a resolve.Resolver, validating every literal against bounds.
func Field(raw string, bounds Bounds) (resolve.Resolver, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty cron field")
	}

	if raw == "*" {
		return resolve.Everytime{}, nil
	}

	if strings.Contains(raw, ",") {
		return parseList(raw, bounds)
	}

	if strings.HasPrefix(raw, "*/") {
		return parseStep(raw, bounds)
	}

	if strings.Contains(raw, "-") {
		return parseRange(raw, bounds)
	}

	value, err := parseBounded(raw, bounds)
	if err != nil {
		return nil, err
	}

	return resolve.Fixed{Max: bounds.ring(), At: value}, nil
}

func parseList(raw string, bounds Bounds) (resolve.Resolver, error) {
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))

	for _, p := range parts {
		v, err := parseBounded(p, bounds)
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return resolve.Steps{Max: bounds.ring(), Values: values}, nil
}

func parseStep(raw string, bounds Bounds) (resolve.Resolver, error) {
	freqStr := strings.TrimPrefix(raw, "*/")

	freq, err := strconv.Atoi(freqStr)
	if err != nil || freq <= 0 {
		return nil, fmt.Errorf("invalid step expression %q", raw)
	}

	values := resolve.StepValues(bounds.Min, bounds.Max, freq)
	if len(values) == 0 {
		return nil, fmt.Errorf("invalid step expression %q", raw)
	}

	return resolve.Steps{Max: bounds.ring(), Values: values}, nil
}

func parseRange(raw string, bounds Bounds) (resolve.Resolver, error) {
	from, to, found := strings.Cut(raw, "-")
	if !found {
		return nil, fmt.Errorf("invalid range expression %q", raw)
	}

	fromV, err := parseBounded(from, bounds)
	if err != nil {
		return nil, err
	}

	toV, err := parseBounded(to, bounds)
	if err != nil {
		return nil, err
	}

	if fromV > toV {
		return nil, fmt.Errorf("invalid range expression %q: from > to", raw)
	}

	return resolve.Range{Max: bounds.ring(), From: fromV, To: toV}, nil
}

func parseBounded(raw string, bounds Bounds) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid cron field value %q", raw)
	}

	if v < bounds.Min || v > bounds.Max {
		return 0, fmt.Errorf("cron field value %d out of bounds [%d, %d]", v, bounds.Min, bounds.Max)
	}

	return v, nil
}
