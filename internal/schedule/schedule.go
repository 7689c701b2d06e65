// Package schedule holds the normalized schedule model shared by the plist
// parser, the definition writer and the presentation layer, plus the pure
// functions over it: human-readable description, next-occurrence projection
// and round-trip construction from user input.
package schedule

import "sort"

// Kind discriminates the schedule union. A definition is exactly one of
// these; "manual" is its own variant, never a zero interval.
type Kind int

const (
	KindManual Kind = iota
	KindInterval
	KindCalendar
)

// CalendarEntry is one calendar trigger. Entries are OR'd: the job fires at
// each of them independently.
type CalendarEntry struct {
	Weekday *int // 0 = Sunday .. 6 = Saturday; nil fires every day
	Hour    int  // 0..23
	Minute  int  // 0..59
}

// Spec is the normalized schedule of a job definition.
//
// Seconds is meaningful only for KindInterval, Entries only for KindCalendar.
type Spec struct {
	Kind    Kind
	Seconds int
	Entries []CalendarEntry
}

// Manual returns the schedule with no autonomous trigger.
func Manual() Spec { return Spec{Kind: KindManual} }

// Interval returns a fixed-period schedule of n seconds.
func Interval(seconds int) Spec { return Spec{Kind: KindInterval, Seconds: seconds} }

// Calendar returns a calendar schedule over the given entries.
func Calendar(entries []CalendarEntry) Spec {
	return Spec{Kind: KindCalendar, Entries: entries}
}

// Unit is a user-facing interval granularity.
type Unit int

const (
	UnitSeconds Unit = iota
	UnitMinutes
	UnitHours
	UnitDays
)

func (u Unit) seconds() int {
	switch u {
	case UnitMinutes:
		return 60
	case UnitHours:
		return 3600
	case UnitDays:
		return 86400
	default:
		return 1
	}
}

// String returns the singular unit name.
func (u Unit) String() string {
	switch u {
	case UnitMinutes:
		return "minute"
	case UnitHours:
		return "hour"
	case UnitDays:
		return "day"
	default:
		return "second"
	}
}

// IntervalSeconds converts a (value, unit) pair from an edit form into the
// stored interval in seconds.
func IntervalSeconds(value int, unit Unit) int {
	return value * unit.seconds()
}

// SplitInterval presents a stored interval as a (value, unit) pair, picking
// the largest unit that divides it evenly. Lossy for intervals not built via
// IntervalSeconds; that is fine, it is a display convenience only.
func SplitInterval(seconds int) (int, Unit) {
	for _, u := range []Unit{UnitDays, UnitHours, UnitMinutes} {
		if seconds > 0 && seconds%u.seconds() == 0 {
			return seconds / u.seconds(), u
		}
	}
	return seconds, UnitSeconds
}

// BuildCalendar constructs calendar entries from a single time of day and a
// weekday set. An empty set means daily: a single entry with no weekday.
func BuildCalendar(hour, minute int, weekdays []int) []CalendarEntry {
	if len(weekdays) == 0 {
		return []CalendarEntry{{Hour: hour, Minute: minute}}
	}
	days := append([]int(nil), weekdays...)
	sort.Ints(days)
	entries := make([]CalendarEntry, 0, len(days))
	for _, d := range days {
		d := d
		entries = append(entries, CalendarEntry{Weekday: &d, Hour: hour, Minute: minute})
	}
	return entries
}
