package launchd

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"

	"launchdeck/internal/schedule"
)

// Rewrite merges a validated draft into an existing plist document,
// returning the new serialized bytes. Only the keys this tool owns are
// touched; every other key rides through byte-for-byte equivalent. Passing
// nil or empty existing bytes builds a fresh document.
//
// Exactly one of StartInterval / StartCalendarInterval survives: switching
// mode deletes the other key.
func Rewrite(existing []byte, d *Draft) ([]byte, error) {
	raw := map[string]any{}
	if len(existing) > 0 {
		if _, err := plist.Unmarshal(existing, &raw); err != nil {
			return nil, fmt.Errorf("parse existing definition: %w", err)
		}
	}

	raw[keyLabel] = d.Label
	raw[keyProgramArguments] = d.argv()
	// The argument vector is authoritative once we write it; a stale Program
	// key would win over it on the next parse.
	delete(raw, keyProgram)
	raw[keyRunAtLoad] = d.RunAtLoad

	spec := d.Spec()
	switch spec.Kind {
	case schedule.KindInterval:
		raw[keyStartInterval] = spec.Seconds
		delete(raw, keyCalendarInterval)
	case schedule.KindCalendar:
		raw[keyCalendarInterval] = calendarDicts(spec.Entries)
		delete(raw, keyStartInterval)
	default:
		delete(raw, keyStartInterval)
		delete(raw, keyCalendarInterval)
	}

	data, err := plist.MarshalIndent(raw, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("serialize definition: %w", err)
	}
	return data, nil
}

func calendarDicts(entries []schedule.CalendarEntry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		d := map[string]any{"Hour": e.Hour, "Minute": e.Minute}
		if e.Weekday != nil {
			d["Weekday"] = *e.Weekday
		}
		out = append(out, d)
	}
	return out
}

// WriteFile lands data at path atomically: temp file in the same directory,
// then rename. A crash mid-write never leaves a truncated definition. The
// parent directory is created on demand (a fresh user account has no
// LaunchAgents directory yet).
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
