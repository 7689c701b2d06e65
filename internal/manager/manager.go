// Package manager is the surface the presentation layer (CLI, a future UI)
// talks to: reconciled views in, validated drafts and control verbs out.
package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"launchdeck/internal/audit"
	"launchdeck/internal/config"
	"launchdeck/internal/launchd"
	"launchdeck/internal/schedule"
	"launchdeck/pkg/execx"
)

// Manager wires the reconciler, the launchctl client, the definition writer
// and the audit log together. It holds no job state; every query is a fresh
// pass.
type Manager struct {
	recon   *launchd.Reconciler
	client  *launchd.Client
	userDir string
	audit   *audit.Log
	log     zerolog.Logger
}

// Options carries the injectable pieces; zero values get real defaults.
type Options struct {
	Runner execx.Runner
	UID    int
	Audit  *audit.Log
}

// New builds a Manager from configuration. The user-scope directory is
// where new definitions are created.
func New(cfg config.Config, opts Options, log zerolog.Logger) (*Manager, error) {
	timeout, err := cfg.CommandTimeoutDuration(execx.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = execx.Exec{}
	}
	uid := opts.UID
	if uid == 0 {
		uid = os.Getuid()
	}

	userDir := cfg.UserAgentDir
	var dirs []launchd.ScopeDir
	if userDir != "" {
		dirs = append(dirs, launchd.ScopeDir{Scope: launchd.ScopeUserAgent, Path: userDir})
		if cfg.IncludeSystem {
			dirs = append(dirs,
				launchd.ScopeDir{Scope: launchd.ScopeSystemAgent, Path: "/Library/LaunchAgents"},
				launchd.ScopeDir{Scope: launchd.ScopeSystemDaemon, Path: "/Library/LaunchDaemons"},
			)
		}
	} else {
		all := launchd.DefaultDirs()
		for _, d := range all {
			if d.Scope == launchd.ScopeUserAgent {
				userDir = d.Path
			}
			if d.Scope == launchd.ScopeUserAgent || cfg.IncludeSystem {
				dirs = append(dirs, d)
			}
		}
		if userDir == "" {
			return nil, fmt.Errorf("cannot determine user LaunchAgents directory")
		}
	}

	client := &launchd.Client{
		Runner:  runner,
		Bin:     cfg.LaunchctlPath,
		UID:     uid,
		Timeout: timeout,
		Log:     log,
	}
	return &Manager{
		recon: &launchd.Reconciler{
			Dirs:   dirs,
			Prefix: cfg.LabelPrefix,
			Client: client,
			Log:    log,
		},
		client:  client,
		userDir: userDir,
		audit:   opts.Audit,
		log:     log,
	}, nil
}

// UserDir returns the directory new definitions are written to.
func (m *Manager) UserDir() string { return m.userDir }

//
// Queries
//

func (m *Manager) ListManagedAgents(ctx context.Context) ([]launchd.JobView, error) {
	return m.recon.ListManagedAgents(ctx)
}

func (m *Manager) ListAllJobs(ctx context.Context) ([]launchd.JobView, error) {
	return m.recon.ListAllJobs(ctx)
}

// Refresh runs a full reconciliation pass. The core caches nothing between
// calls, so a refresh is simply another pass over definitions + live state.
func (m *Manager) Refresh(ctx context.Context) ([]launchd.JobView, error) {
	return m.ListAllJobs(ctx)
}

// Find returns the reconciled view for one label, preferring entries that
// have a definition file over live-only orphans.
func (m *Manager) Find(ctx context.Context, label string) (launchd.JobView, error) {
	return m.find(ctx, label)
}

// Describe renders a schedule for display.
func (m *Manager) Describe(s schedule.Spec) string { return schedule.Describe(s) }

// NextRun projects a schedule's next firing time.
func (m *Manager) NextRun(s schedule.Spec, now time.Time) (time.Time, bool) {
	return schedule.Next(s, now)
}

//
// Writes
//

// CreateOrUpdate validates the draft and lands it in the user scope,
// merging into an existing definition when one is already on disk. Nothing
// is touched until validation passes. Returns the definition parsed back
// from the written bytes.
func (m *Manager) CreateOrUpdate(ctx context.Context, d *launchd.Draft) (*launchd.JobDefinition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	path := filepath.Join(m.userDir, d.Label+".plist")
	return m.rewriteAt(ctx, path, d)
}

// Rewrite merges the draft into the definition at path, preserving every
// field outside this tool's control.
func (m *Manager) Rewrite(ctx context.Context, path string, d *launchd.Draft) (*launchd.JobDefinition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return m.rewriteAt(ctx, path, d)
}

func (m *Manager) rewriteAt(_ context.Context, path string, d *launchd.Draft) (*launchd.JobDefinition, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data, err := launchd.Rewrite(existing, d)
	if err != nil {
		return nil, err
	}
	if err := launchd.WriteFile(path, data); err != nil {
		m.record("write", d.Label, path, err)
		return nil, err
	}
	m.record("write", d.Label, path, nil)
	m.log.Info().Str("label", d.Label).Str("path", path).Msg("definition written")

	def, err := launchd.ParseDefinition(data, path, launchd.ScopeUserAgent)
	if err != nil {
		return nil, err
	}
	return def, nil
}

//
// Control verbs
//

func (m *Manager) Load(ctx context.Context, label string) error {
	v, err := m.find(ctx, label)
	if err != nil {
		return err
	}
	err = m.client.Load(ctx, v.Scope, v.Path)
	m.record("load", label, v.Path, err)
	return err
}

func (m *Manager) Unload(ctx context.Context, label string) error {
	v, err := m.find(ctx, label)
	if err != nil {
		return err
	}
	err = m.client.Unload(ctx, v.Scope, label)
	m.record("unload", label, v.Path, err)
	return err
}

func (m *Manager) Kickstart(ctx context.Context, label string) error {
	v, err := m.find(ctx, label)
	if err != nil {
		return err
	}
	err = m.client.Kickstart(ctx, v.Scope, label)
	m.record("kickstart", label, v.Path, err)
	return err
}

// Restart is unload-then-load against the definition file.
func (m *Manager) Restart(ctx context.Context, label string) error {
	v, err := m.find(ctx, label)
	if err != nil {
		return err
	}
	err = m.client.Reload(ctx, v.Scope, label, v.Path)
	m.record("restart", label, v.Path, err)
	return err
}

// Remove unloads the job and deletes its definition file.
func (m *Manager) Remove(ctx context.Context, label string) error {
	v, err := m.find(ctx, label)
	if err != nil {
		return err
	}
	if err := m.client.Unload(ctx, v.Scope, label); err != nil {
		m.record("remove", label, v.Path, err)
		return err
	}
	err = os.Remove(v.Path)
	if err != nil {
		err = fmt.Errorf("remove %s: %w", v.Path, err)
	}
	m.record("remove", label, v.Path, err)
	return err
}

// find locates a job by label across every scanned scope. Jobs with a
// definition file win over live-only orphans; the same label in two scopes
// resolves to the first in scan order (user scope first).
func (m *Manager) find(ctx context.Context, label string) (launchd.JobView, error) {
	views, err := m.recon.ListAllJobs(ctx)
	if err != nil {
		return launchd.JobView{}, err
	}
	for _, v := range views {
		if v.Label == label && v.Definition != nil {
			return v, nil
		}
	}
	for _, v := range views {
		if v.Label == label {
			return v, nil
		}
	}
	return launchd.JobView{}, fmt.Errorf("no job with label %q", label)
}

// record appends to the audit log; audit failure never fails the action.
func (m *Manager) record(action, label, target string, opErr error) {
	e := audit.Entry{Action: action, Label: label, Target: target, OK: opErr == nil}
	if opErr != nil {
		e.Detail = opErr.Error()
	}
	if err := m.audit.Append(e); err != nil {
		m.log.Debug().Err(err).Msg("audit append failed")
	}
}
