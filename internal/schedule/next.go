package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Five-field crontab grammar; calendar entries map onto it exactly
// (minute, hour, any dom, any month, optional dow with 0 = Sunday).
var calendarParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Next projects the next firing time strictly after now.
//
// Manual never fires. Interval is the naive now + N projection: the job
// manager's true anchor (time of last fire) is not observable through its
// control surface, so this is an estimate, not an execution authority.
// Calendar returns the nearest of every entry's next occurrence; if now is
// exactly a matching instant the following occurrence is returned.
func Next(s Spec, now time.Time) (time.Time, bool) {
	switch s.Kind {
	case KindInterval:
		return now.Add(time.Duration(s.Seconds) * time.Second), true
	case KindCalendar:
		return nextCalendar(s.Entries, now)
	default:
		return time.Time{}, false
	}
}

func nextCalendar(entries []CalendarEntry, now time.Time) (time.Time, bool) {
	var best time.Time
	for _, e := range entries {
		sched, err := calendarParser.Parse(cronExpr(e))
		if err != nil {
			continue // entry was range-checked at parse time; be safe anyway
		}
		n := sched.Next(now)
		if n.IsZero() {
			continue
		}
		if best.IsZero() || n.Before(best) {
			best = n
		}
	}
	if best.IsZero() {
		return time.Time{}, false
	}
	return best, true
}

func cronExpr(e CalendarEntry) string {
	dow := "*"
	if e.Weekday != nil {
		dow = fmt.Sprintf("%d", *e.Weekday)
	}
	return fmt.Sprintf("%d %d * * %s", e.Minute, e.Hour, dow)
}
