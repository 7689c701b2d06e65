package launchd

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"launchdeck/internal/schedule"
)

// MinIntervalSeconds floors interval schedules; launchd throttles anything
// tighter anyway.
const MinIntervalSeconds = 10

// Draft carries user input through a create/edit flow. It is validated and
// converted to a definition write; never persisted itself.
type Draft struct {
	Label     string
	Command   string // executable path
	ArgsLine  string // shell-style argument string, split on write
	RunAtLoad bool

	Mode            schedule.Kind
	IntervalSeconds int
	Hour            int
	Minute          int
	Weekdays        []int // empty = daily
}

// Validate trims string fields in place and checks ranges. The first
// problem found is returned as a *ValidationError; nothing is written until
// a draft validates.
func (d *Draft) Validate() error {
	d.Label = strings.TrimSpace(d.Label)
	d.Command = strings.TrimSpace(d.Command)
	d.ArgsLine = strings.TrimSpace(d.ArgsLine)

	if d.Label == "" {
		return validationErrorf("label", "must not be empty")
	}
	if !strings.Contains(d.Label, ".") {
		return validationErrorf("label", "%q needs a reverse-domain namespace (e.g. com.example.job)", d.Label)
	}
	if strings.ContainsAny(d.Label, " \t/") {
		return validationErrorf("label", "%q must not contain spaces or slashes", d.Label)
	}
	if d.Command == "" {
		return validationErrorf("command", "executable path must not be empty")
	}
	if _, err := shellquote.Split(d.ArgsLine); err != nil {
		return validationErrorf("arguments", "%v", err)
	}

	switch d.Mode {
	case schedule.KindInterval:
		if d.IntervalSeconds < MinIntervalSeconds {
			return validationErrorf("interval", "must be at least %d seconds", MinIntervalSeconds)
		}
	case schedule.KindCalendar:
		if d.Hour < 0 || d.Hour > 23 {
			return validationErrorf("hour", "%d out of range 0..23", d.Hour)
		}
		if d.Minute < 0 || d.Minute > 59 {
			return validationErrorf("minute", "%d out of range 0..59", d.Minute)
		}
		for _, w := range d.Weekdays {
			if w < 0 || w > 6 {
				return validationErrorf("weekday", "%d out of range 0..6", w)
			}
		}
	case schedule.KindManual:
		// nothing to check
	default:
		return validationErrorf("schedule", "unknown mode")
	}
	return nil
}

// Spec builds the normalized schedule the draft describes. Call Validate
// first.
func (d *Draft) Spec() schedule.Spec {
	switch d.Mode {
	case schedule.KindInterval:
		return schedule.Interval(d.IntervalSeconds)
	case schedule.KindCalendar:
		return schedule.Calendar(schedule.BuildCalendar(d.Hour, d.Minute, d.Weekdays))
	default:
		return schedule.Manual()
	}
}

// argv returns the full program-argument vector: command followed by the
// split argument string.
func (d *Draft) argv() []string {
	args, err := shellquote.Split(d.ArgsLine)
	if err != nil {
		// Validate rejects unbalanced quoting before anything writes.
		args = strings.Fields(d.ArgsLine)
	}
	return append([]string{d.Command}, args...)
}
