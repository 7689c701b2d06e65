package launchd

import (
	"fmt"
	"strconv"
	"strings"

	"howett.net/plist"

	"launchdeck/internal/schedule"
)

// Top-level plist keys this tool owns. Everything else is passthrough.
const (
	keyLabel            = "Label"
	keyProgram          = "Program"
	keyProgramArguments = "ProgramArguments"
	keyRunAtLoad        = "RunAtLoad"
	keyStartInterval    = "StartInterval"
	keyCalendarInterval = "StartCalendarInterval"
)

var managedKeys = []string{
	keyLabel, keyProgram, keyProgramArguments, keyRunAtLoad,
	keyStartInterval, keyCalendarInterval,
}

// ParseDefinition maps one plist document onto the normalized model.
//
// A document without a usable Label returns (nil, nil): during a directory
// scan a malformed file is skipped, never fatal. Real decode failures (not
// a plist at all) are returned as errors with path context so single-file
// callers can surface them.
func ParseDefinition(data []byte, path string, scope Scope) (*JobDefinition, error) {
	var raw map[string]any
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	label, _ := raw[keyLabel].(string)
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}

	def := &JobDefinition{
		Label: label,
		Path:  path,
		Scope: scope,
		Extra: map[string]any{},
	}

	// Program wins over the argument vector for the executable; the vector's
	// tail is the argument list either way.
	argv := stringSlice(raw[keyProgramArguments])
	if prog, ok := raw[keyProgram].(string); ok && prog != "" {
		def.Program = prog
		def.Arguments = argv
	} else if len(argv) > 0 {
		def.Program = argv[0]
		def.Arguments = argv[1:]
	}

	def.RunAtLoad = coerceBool(raw[keyRunAtLoad])
	def.Schedule = parseSchedule(raw, def)

	for k, v := range raw {
		if !isManagedKey(k) {
			def.Extra[k] = v
		}
	}
	return def, nil
}

func isManagedKey(k string) bool {
	for _, m := range managedKeys {
		if k == m {
			return true
		}
	}
	return false
}

// parseSchedule applies the interval-before-calendar precedence. A file
// carrying both keys is treated as interval; that is how launchd tooling in
// the wild behaves, so we follow it but record a warning for the scan log.
func parseSchedule(raw map[string]any, def *JobDefinition) schedule.Spec {
	interval, hasInterval := coerceInt(raw[keyStartInterval])
	calRaw, hasCalendar := raw[keyCalendarInterval]

	if hasInterval && interval > 0 {
		if hasCalendar {
			def.Warnings = append(def.Warnings,
				"both StartInterval and StartCalendarInterval set; using the interval")
		}
		return schedule.Interval(interval)
	}
	if hasCalendar {
		entries, warns := parseCalendar(calRaw)
		def.Warnings = append(def.Warnings, warns...)
		if len(entries) > 0 {
			return schedule.Calendar(entries)
		}
	}
	return schedule.Manual()
}

// parseCalendar accepts both encodings launchd does: a single dict or an
// array of dicts. Out-of-range fields are kept as written but reported, so
// a "Daily 99:00" that never fires shows up in the scan log instead of
// passing silently.
func parseCalendar(v any) ([]schedule.CalendarEntry, []string) {
	var dicts []map[string]any
	switch x := v.(type) {
	case map[string]any:
		dicts = []map[string]any{x}
	case []any:
		for _, item := range x {
			if d, ok := item.(map[string]any); ok {
				dicts = append(dicts, d)
			}
		}
	default:
		return nil, nil
	}

	var warns []string
	entries := make([]schedule.CalendarEntry, 0, len(dicts))
	for _, d := range dicts {
		var e schedule.CalendarEntry
		if h, ok := coerceInt(d["Hour"]); ok {
			if h < 0 || h > 23 {
				warns = append(warns, fmt.Sprintf("calendar Hour %d out of range 0-23", h))
			}
			e.Hour = h
		}
		if m, ok := coerceInt(d["Minute"]); ok {
			if m < 0 || m > 59 {
				warns = append(warns, fmt.Sprintf("calendar Minute %d out of range 0-59", m))
			}
			e.Minute = m
		}
		if w, ok := coerceInt(d["Weekday"]); ok {
			if w == 7 { // launchd accepts 7 as an alias for Sunday
				w = 0
			}
			if w < 0 || w > 6 {
				warns = append(warns, fmt.Sprintf("calendar Weekday %d out of range 0-7", w))
			}
			e.Weekday = &w
		}
		entries = append(entries, e)
	}
	return entries, warns
}

//
// Coercion helpers
//
// Plist scalars arrive as a zoo of numeric encodings depending on the
// source document (XML vs binary, hand-edited strings). Normalize here so
// the rest of the package only sees Go ints and bools.
//

func coerceInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	case uint:
		return int(x), true
	case float32:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		if n, ok := coerceInt(v); ok {
			return n != 0
		}
		return false
	}
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
