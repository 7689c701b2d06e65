package launchd

import (
	"strings"
	"testing"

	"launchdeck/internal/schedule"
)

const intervalPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>com.example.backup</string>
	<key>ProgramArguments</key>
	<array>
		<string>/usr/local/bin/backup</string>
		<string>--quiet</string>
		<string>--target=/Volumes/Vault</string>
	</array>
	<key>StartInterval</key>
	<integer>3600</integer>
	<key>RunAtLoad</key>
	<true/>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin</string>
	</dict>
</dict>
</plist>
`

const calendarPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>com.example.report</string>
	<key>Program</key>
	<string>/usr/bin/report</string>
	<key>StartCalendarInterval</key>
	<array>
		<dict>
			<key>Weekday</key>
			<integer>1</integer>
			<key>Hour</key>
			<integer>9</integer>
			<key>Minute</key>
			<integer>30</integer>
		</dict>
		<dict>
			<key>Weekday</key>
			<string>7</string>
			<key>Hour</key>
			<string>18</string>
			<key>Minute</key>
			<string>05</string>
		</dict>
	</array>
</dict>
</plist>
`

func TestParseDefinitionInterval(t *testing.T) {
	t.Parallel()
	def, err := ParseDefinition([]byte(intervalPlist), "/tmp/com.example.backup.plist", ScopeUserAgent)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	if def == nil {
		t.Fatal("ParseDefinition returned nil for a valid definition")
	}
	if def.Label != "com.example.backup" {
		t.Fatalf("Label = %q", def.Label)
	}
	if def.Program != "/usr/local/bin/backup" {
		t.Fatalf("Program = %q", def.Program)
	}
	if len(def.Arguments) != 2 || def.Arguments[0] != "--quiet" {
		t.Fatalf("Arguments = %v", def.Arguments)
	}
	if !def.RunAtLoad {
		t.Fatal("RunAtLoad = false, want true")
	}
	if def.Schedule.Kind != schedule.KindInterval || def.Schedule.Seconds != 3600 {
		t.Fatalf("Schedule = %+v", def.Schedule)
	}
	if _, ok := def.Extra["EnvironmentVariables"]; !ok {
		t.Fatal("EnvironmentVariables not retained in passthrough bag")
	}
	if _, ok := def.Extra["Label"]; ok {
		t.Fatal("managed key leaked into passthrough bag")
	}
}

func TestParseDefinitionCalendar(t *testing.T) {
	t.Parallel()
	def, err := ParseDefinition([]byte(calendarPlist), "/tmp/com.example.report.plist", ScopeUserAgent)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	if def.Program != "/usr/bin/report" {
		t.Fatalf("Program = %q, want explicit Program field", def.Program)
	}
	if def.Schedule.Kind != schedule.KindCalendar {
		t.Fatalf("Schedule.Kind = %v", def.Schedule.Kind)
	}
	entries := def.Schedule.Entries
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
	if entries[0].Weekday == nil || *entries[0].Weekday != 1 || entries[0].Hour != 9 || entries[0].Minute != 30 {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	// Numeric strings are coerced; weekday 7 aliases Sunday.
	if entries[1].Weekday == nil || *entries[1].Weekday != 0 {
		t.Fatalf("entry 1 weekday = %v, want 0", entries[1].Weekday)
	}
	if entries[1].Hour != 18 || entries[1].Minute != 5 {
		t.Fatalf("entry 1 time = %02d:%02d", entries[1].Hour, entries[1].Minute)
	}
}

func TestParseDefinitionSingleCalendarDict(t *testing.T) {
	t.Parallel()
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
	<key>Label</key><string>com.example.daily</string>
	<key>ProgramArguments</key><array><string>/bin/echo</string></array>
	<key>StartCalendarInterval</key>
	<dict><key>Hour</key><integer>7</integer><key>Minute</key><integer>15</integer></dict>
</dict></plist>`
	def, err := ParseDefinition([]byte(doc), "x.plist", ScopeUserAgent)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	if def.Schedule.Kind != schedule.KindCalendar || len(def.Schedule.Entries) != 1 {
		t.Fatalf("Schedule = %+v", def.Schedule)
	}
	e := def.Schedule.Entries[0]
	if e.Weekday != nil || e.Hour != 7 || e.Minute != 15 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestParseDefinitionIntervalBeatsCalendar(t *testing.T) {
	t.Parallel()
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
	<key>Label</key><string>com.example.both</string>
	<key>ProgramArguments</key><array><string>/bin/true</string></array>
	<key>StartInterval</key><integer>600</integer>
	<key>StartCalendarInterval</key>
	<dict><key>Hour</key><integer>7</integer><key>Minute</key><integer>0</integer></dict>
</dict></plist>`
	def, err := ParseDefinition([]byte(doc), "x.plist", ScopeUserAgent)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	if def.Schedule.Kind != schedule.KindInterval || def.Schedule.Seconds != 600 {
		t.Fatalf("Schedule = %+v, want interval precedence", def.Schedule)
	}
	if len(def.Warnings) == 0 {
		t.Fatal("expected a warning for the interval/calendar ambiguity")
	}
}

func TestParseDefinitionCalendarOutOfRange(t *testing.T) {
	t.Parallel()
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
	<key>Label</key><string>com.example.never</string>
	<key>ProgramArguments</key><array><string>/bin/true</string></array>
	<key>StartCalendarInterval</key>
	<dict><key>Hour</key><integer>99</integer><key>Minute</key><integer>61</integer></dict>
</dict></plist>`
	def, err := ParseDefinition([]byte(doc), "x.plist", ScopeUserAgent)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	// Values are kept as written so the listing shows what the file says.
	if def.Schedule.Kind != schedule.KindCalendar || def.Schedule.Entries[0].Hour != 99 {
		t.Fatalf("Schedule = %+v", def.Schedule)
	}
	if len(def.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want one per out-of-range field", def.Warnings)
	}
	for _, w := range def.Warnings {
		if !strings.Contains(w, "out of range") {
			t.Fatalf("warning %q does not name the range violation", w)
		}
	}
}

func TestParseDefinitionNoLabel(t *testing.T) {
	t.Parallel()
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
	<key>ProgramArguments</key><array><string>/bin/true</string></array>
</dict></plist>`
	def, err := ParseDefinition([]byte(doc), "x.plist", ScopeUserAgent)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	if def != nil {
		t.Fatalf("def = %+v, want nil for a label-less file", def)
	}
}

func TestParseDefinitionGarbage(t *testing.T) {
	t.Parallel()
	if _, err := ParseDefinition([]byte("not a plist at all"), "x.plist", ScopeUserAgent); err == nil {
		t.Fatal("expected a parse error for garbage input")
	}
}

func TestParseDefinitionDefaults(t *testing.T) {
	t.Parallel()
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
	<key>Label</key><string>com.example.manual</string>
	<key>ProgramArguments</key><array><string>/bin/date</string></array>
</dict></plist>`
	def, err := ParseDefinition([]byte(doc), "x.plist", ScopeSystemDaemon)
	if err != nil {
		t.Fatalf("ParseDefinition error: %v", err)
	}
	if def.RunAtLoad {
		t.Fatal("RunAtLoad should default to false")
	}
	if def.Schedule.Kind != schedule.KindManual {
		t.Fatalf("Schedule.Kind = %v, want manual", def.Schedule.Kind)
	}
	if def.Scope != ScopeSystemDaemon {
		t.Fatalf("Scope = %v", def.Scope)
	}
}
