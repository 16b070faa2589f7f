package config

import (
	"fmt"
	"sort"

	"github.com/zalgonoise/bansuri/duration"
)

// OnFail selects the retry policy applied after a non-success exit in
// simple mode.
type OnFail string

const (
	OnFailStop    OnFail = "stop"
	OnFailRestart OnFail = "restart"
)

// Notify selects whether and how a Runner reports failures.
type Notify string

const (
	NotifyNone Notify = "none"
	NotifyMail Notify = "mail"
)

// TaskDescriptor is the immutable, value-compared description of one
// managed task, produced by Load.
type TaskDescriptor struct {
	Name             string
	Command          string
	WorkingDirectory string
	ScheduleCron     string
	TimerSeconds     int
	HasTimer         bool
	TimeoutSeconds   int
	HasTimeout       bool
	Times            int
	MaxAttempts      int
	OnFail           OnFail
	DependsOn        []string
	SuccessCodes     []int
	EnvironmentFile  string
	Priority         int
	Stdout           string
	Stderr           string
	Notify           Notify
	Description      string

	// User is a reserved field: accepted by the loader, inert downstream.
	User string
}

// rawDescriptor mirrors the recognized JSON keys of one script entry,
// after kebab-to-snake key normalization. Every field is optional so
// that a missing key leaves the Go zero value, matching the Python
// dataclass's field defaults.
type rawDescriptor struct {
	Name             string `json:"name"`
	Command          string `json:"command"`
	User             string `json:"user"`
	WorkingDirectory string `json:"working_directory"`
	ScheduleCron     string `json:"schedule_cron"`
	Timer            any    `json:"timer"`
	Timeout          any    `json:"timeout"`
	Times            *int   `json:"times"`
	MaxAttempts      *int   `json:"max_attempts"`
	OnFail           string `json:"on_fail"`
	DependsOn        []string `json:"depends_on"`
	SuccessCodes     []int  `json:"success_codes"`
	EnvironmentFile  string `json:"environment_file"`
	Priority         int    `json:"priority"`
	Stdout           string `json:"stdout"`
	Stderr           string `json:"stderr"`
	Notify           string `json:"notify"`
	Description      string `json:"description"`
}

const (
	defaultTimes       = 1
	defaultMaxAttempts = 1
)

func (r rawDescriptor) toDescriptor() (TaskDescriptor, []string) {
	var warnings []string

	d := TaskDescriptor{
		Name:             r.Name,
		Command:          r.Command,
		User:             r.User,
		WorkingDirectory: r.WorkingDirectory,
		ScheduleCron:     r.ScheduleCron,
		OnFail:           OnFailStop,
		DependsOn:        r.DependsOn,
		EnvironmentFile:  r.EnvironmentFile,
		Priority:         r.Priority,
		Stdout:           r.Stdout,
		Stderr:           r.Stderr,
		Notify:           NotifyNone,
		Description:      r.Description,
	}

	if r.Stderr == "" {
		d.Stderr = "combined"
	}

	if seconds, ok := duration.ParseAny(r.Timer); ok && seconds > 0 {
		d.TimerSeconds, d.HasTimer = seconds, true
	}

	if seconds, ok := duration.ParseAny(r.Timeout); ok && seconds > 0 {
		d.TimeoutSeconds, d.HasTimeout = seconds, true
	}

	d.Times = defaultTimes
	if r.Times != nil {
		d.Times = *r.Times
	}

	d.MaxAttempts = defaultMaxAttempts
	if r.MaxAttempts != nil {
		d.MaxAttempts = *r.MaxAttempts
	}

	switch OnFail(r.OnFail) {
	case OnFailRestart:
		d.OnFail = OnFailRestart
	case OnFailStop, "":
		d.OnFail = OnFailStop
	default:
		warnings = append(warnings, fmt.Sprintf("%s: unrecognized on_fail %q, defaulting to %q", r.Name, r.OnFail, OnFailStop))
		d.OnFail = OnFailStop
	}

	switch Notify(r.Notify) {
	case NotifyMail:
		d.Notify = NotifyMail
	case NotifyNone, "":
		d.Notify = NotifyNone
	default:
		warnings = append(warnings, fmt.Sprintf("%s: unrecognized notify %q, defaulting to %q", r.Name, r.Notify, NotifyNone))
		d.Notify = NotifyNone
	}

	if len(r.SuccessCodes) == 0 {
		d.SuccessCodes = []int{0}
	} else {
		d.SuccessCodes = append([]int(nil), r.SuccessCodes...)
		sort.Ints(d.SuccessCodes)
	}

	return d, warnings
}

// hasSchedule reports whether the descriptor declares a cron expression
// or a positive, non-"none" timer.
func (d TaskDescriptor) hasSchedule() bool {
	return d.ScheduleCron != "" || d.HasTimer
}

// validate enforces the loader's one cross-field rule: a descriptor must
// declare a schedule, a timer, or a non-empty depends_on.
func (d TaskDescriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: descriptor missing required field %q", ErrMissingField, "name")
	}

	if d.Command == "" {
		return fmt.Errorf("%w: descriptor %q missing required field %q", ErrMissingField, d.Name, "command")
	}

	if !d.hasSchedule() && len(d.DependsOn) == 0 {
		return fmt.Errorf("%w: task %q requires schedule_cron, timer or depends_on", ErrInvalidRule, d.Name)
	}

	return nil
}
