// Package resolve provides the per-field distance calculators used by a
// standard 5-field cron schedule (minute, hour, day-of-month, month,
// day-of-week). Each Resolver answers one question: given the current
// value of its field, how many field-units away is the next value this
// field should fire on.
package resolve

// Resolver computes the distance, in field-units, to the next occurrence
// of a cron field given its current value.
type Resolver interface {
	// Resolve returns the distance to the next occurrence, as unit values.
	Resolve(value int) int
}

// Everytime matches every value of a field (the cron '*' wildcard).
type Everytime struct{}

// Resolve always returns zero: the field fires on its current value too.
func (Everytime) Resolve(_ int) int {
	return 0
}

// Fixed matches a single value (e.g. "15" in the minutes field).
type Fixed struct {
	Max int
	At  int
}

// Resolve returns the distance to At, wrapping around Max if needed.
func (f Fixed) Resolve(value int) int {
	return wrap(value, f.At, f.At, f.Max)
}

// Range matches every value between From and To, inclusive.
type Range struct {
	Max      int
	From, To int
}

// Resolve returns zero if value already falls within [From, To], otherwise
// the distance to From, wrapping around Max.
func (r Range) Resolve(value int) int {
	if value >= r.From && value <= r.To {
		return 0
	}

	return wrap(value, r.From, r.To, r.Max)
}

// Steps matches an explicit, ascending set of values (a list or a "*/n"
// step expression expanded ahead of time).
type Steps struct {
	Max    int
	Values []int
}

// Resolve returns the smallest distance to any configured step value.
func (s Steps) Resolve(value int) int {
	best := -1

	for _, step := range s.Values {
		d := wrap(value, step, step, s.Max)
		if best == -1 || d < best {
			best = d
		}
	}

	return best
}

// wrap returns the distance from value to the next occurrence in
// [from, to], treating the field as a ring of maximum positions (the
// number of distinct values the field takes, e.g. 60 for minutes).
func wrap(value, from, to, maximum int) int {
	if value > to {
		return from + maximum - value
	}

	return from - value
}

// StepValues expands a "*/n" style step expression over [from, to] into
// the explicit ascending list Steps expects.
func StepValues(from, to, frequency int) []int {
	if frequency <= 0 || from > to {
		return nil
	}

	values := make([]int, 0, (to-from)/frequency+1)

	for v := from; v <= to; v += frequency {
		values = append(values, v)
	}

	return values
}
