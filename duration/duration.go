// Package duration parses the loose duration strings accepted by task
// descriptors (timer, timeout) into seconds.
package duration

import (
	"strconv"
	"strings"
)

// Parse converts a string or integer duration into a number of seconds.
//
// Recognized forms: pure digits ("120"), digits followed by a unit
// suffix of 's', 'm' or 'h' (case-insensitive, e.g. "30s", "5m", "1h").
// The literals "none" and "0" (and the empty string) are the "no
// duration" value, reported as (0, false).
//
// Anything else is not recognized and is reported as (0, false); the
// caller is expected to log and proceed as if no duration was set.
func Parse(raw string) (seconds int, ok bool) {
	s := strings.TrimSpace(raw)

	switch strings.ToLower(s) {
	case "", "none", "0":
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, false
		}

		return n, true
	}

	unit := s[len(s)-1]

	multiplier, valid := unitMultiplier(unit)
	if !valid {
		return 0, false
	}

	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return 0, false
	}

	return value * multiplier, true
}

// ParseAny parses a duration that may have been decoded from JSON as
// either a string or a number (integers decode to float64 via
// encoding/json's default number handling).
func ParseAny(raw any) (seconds int, ok bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case string:
		return Parse(v)
	case float64:
		if v <= 0 {
			return 0, false
		}

		return int(v), true
	case int:
		if v <= 0 {
			return 0, false
		}

		return v, true
	default:
		return 0, false
	}
}

func unitMultiplier(unit byte) (int, bool) {
	switch unit {
	case 's', 'S':
		return 1, true
	case 'm', 'M':
		return 60, true
	case 'h', 'H':
		return 3600, true
	default:
		return 0, false
	}
}
