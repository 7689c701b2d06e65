package schedule

import (
	"fmt"
	"strings"
)

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Describe renders a schedule for table cells and confirmation prompts.
func Describe(s Spec) string {
	switch s.Kind {
	case KindInterval:
		return describeInterval(s.Seconds)
	case KindCalendar:
		return describeCalendar(s.Entries)
	default:
		return "manual"
	}
}

func describeInterval(seconds int) string {
	value, unit := SplitInterval(seconds)
	if unit == UnitSeconds {
		return fmt.Sprintf("every %ds", seconds)
	}
	name := unit.String()
	if value != 1 {
		name += "s"
	}
	return fmt.Sprintf("every %d %s", value, name)
}

func describeCalendar(entries []CalendarEntry) string {
	if len(entries) == 0 {
		return "manual"
	}
	if t, ok := weekdayCompact(entries); ok {
		return "Mon-Fri " + t
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		t := fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
		if e.Weekday == nil {
			parts = append(parts, "Daily "+t)
			continue
		}
		day := "?"
		if *e.Weekday >= 0 && *e.Weekday < len(weekdayNames) {
			day = weekdayNames[*e.Weekday]
		}
		parts = append(parts, day+" "+t)
	}
	return strings.Join(parts, ", ")
}

// weekdayCompact reports whether entries cover exactly Mon..Fri at a single
// shared time, returning that time.
func weekdayCompact(entries []CalendarEntry) (string, bool) {
	if len(entries) != 5 {
		return "", false
	}
	var seen [7]bool
	hour, minute := entries[0].Hour, entries[0].Minute
	for _, e := range entries {
		if e.Weekday == nil || *e.Weekday < 0 || *e.Weekday > 6 {
			return "", false
		}
		if e.Hour != hour || e.Minute != minute {
			return "", false
		}
		seen[*e.Weekday] = true
	}
	for d := 1; d <= 5; d++ {
		if !seen[d] {
			return "", false
		}
	}
	if seen[0] || seen[6] {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
