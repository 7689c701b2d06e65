// Package launchd is the reconciliation core: it parses plist job
// definitions into a normalized model, merges them with launchd's live
// state, and rewrites definitions without disturbing fields it does not own.
//
// Nothing in this package caches state between calls; every reconciliation
// pass reads definitions and live state fresh.
package launchd

import (
	"fmt"
	"os"
	"path/filepath"

	"launchdeck/internal/schedule"
)

//
// Scopes
//

// Scope identifies the launchd domain a definition lives in.
type Scope int

const (
	ScopeUnknown Scope = iota
	ScopeUserAgent
	ScopeSystemAgent
	ScopeSystemDaemon
)

func (s Scope) String() string {
	switch s {
	case ScopeUserAgent:
		return "user-agent"
	case ScopeSystemAgent:
		return "system-agent"
	case ScopeSystemDaemon:
		return "system-daemon"
	default:
		return "unknown"
	}
}

// DomainTarget returns the launchctl addressing string for this scope:
// the caller's GUI session for user agents, the system domain otherwise.
func (s Scope) DomainTarget(uid int) string {
	if s == ScopeUserAgent {
		return fmt.Sprintf("gui/%d", uid)
	}
	return "system"
}

// ScopeDir pairs a scope with the directory its definitions live in.
type ScopeDir struct {
	Scope Scope
	Path  string
}

// DefaultDirs returns the conventional definition directories. Ordering is
// display grouping only; the same label in two scopes stays two entries.
func DefaultDirs() []ScopeDir {
	home, err := os.UserHomeDir()
	dirs := []ScopeDir{}
	if err == nil {
		dirs = append(dirs, ScopeDir{ScopeUserAgent, filepath.Join(home, "Library", "LaunchAgents")})
	}
	dirs = append(dirs,
		ScopeDir{ScopeSystemAgent, "/Library/LaunchAgents"},
		ScopeDir{ScopeSystemDaemon, "/Library/LaunchDaemons"},
	)
	return dirs
}

//
// Definitions and live state
//

// JobDefinition is the typed view of one plist file. Keys this tool does not
// understand are carried in Extra and survive a rewrite untouched.
type JobDefinition struct {
	Label     string
	Path      string
	Scope     Scope
	Program   string
	Arguments []string
	RunAtLoad bool
	Schedule  schedule.Spec

	// Extra holds passthrough top-level keys (EnvironmentVariables,
	// KeepAlive, MachServices, anything unrecognized).
	Extra map[string]any

	// Warnings collects non-fatal oddities found while parsing, e.g. a
	// definition carrying both an interval and a calendar trigger.
	Warnings []string
}

// LiveJobRecord is one row of launchd's live listing. Ephemeral: fetched
// fresh on every pass, never persisted.
type LiveJobRecord struct {
	Label    string
	PID      *int // present iff currently running
	LastExit *int // meaningful only when not running and previously run
}

//
// Reconciled view
//

// JobState is derived per reconciliation pass, never stored.
type JobState int

const (
	StateUnloaded JobState = iota
	StateLoadedIdle
	StateRunning
	StateCrashed
)

func (s JobState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateLoadedIdle:
		return "loaded"
	case StateCrashed:
		return "crashed"
	default:
		return "unloaded"
	}
}

// DeriveState classifies a job from its live record (nil when launchd does
// not know the label). Purely a function of (pid presence, membership,
// last exit code).
func DeriveState(live *LiveJobRecord) JobState {
	switch {
	case live == nil:
		return StateUnloaded
	case live.PID != nil:
		return StateRunning
	case live.LastExit != nil && *live.LastExit != 0:
		return StateCrashed
	default:
		return StateLoadedIdle
	}
}

// JobView joins one definition with live state. Definition is nil for jobs
// launchd knows about that have no definition file in any scanned scope.
type JobView struct {
	Label      string
	Path       string
	Scope      Scope
	Definition *JobDefinition
	Live       *LiveJobRecord
	State      JobState
}
