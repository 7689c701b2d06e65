package launchd

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Reconciler joins the static definition tree with launchd's live state.
// It is stateless: every call takes fresh snapshots of both sides. The two
// reads are not instantaneous-consistent with each other; a job changing
// state between them can show a stale combination for one pass, which is an
// inherent race with launchd, not something worth coordinating away.
type Reconciler struct {
	Dirs   []ScopeDir
	Prefix string // label namespace for managed agents, e.g. "local.launchdeck."
	Client *Client
	Log    zerolog.Logger
}

// Scan parses every definition under dirs and joins it with the given live
// table. Missing directories are skipped, as are files without a usable
// label; a scan never fails wholesale because of one bad file. Output is
// stable-sorted by (label, path).
func Scan(dirs []ScopeDir, live map[string]LiveJobRecord, log zerolog.Logger) []JobView {
	var views []JobView
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir.Path)
		if err != nil {
			continue // scope directory absent on this machine
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".plist") {
				continue
			}
			path := filepath.Join(dir.Path, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Debug().Str("path", path).Err(err).Msg("skipping unreadable definition")
				continue
			}
			def, err := ParseDefinition(data, path, dir.Scope)
			if err != nil {
				log.Debug().Str("path", path).Err(err).Msg("skipping malformed definition")
				continue
			}
			if def == nil {
				continue // no usable label
			}
			for _, w := range def.Warnings {
				log.Warn().Str("label", def.Label).Str("path", path).Msg(w)
			}
			views = append(views, joinView(def, live))
		}
	}
	sortViews(views)
	return views
}

func joinView(def *JobDefinition, live map[string]LiveJobRecord) JobView {
	v := JobView{
		Label:      def.Label,
		Path:       def.Path,
		Scope:      def.Scope,
		Definition: def,
	}
	if rec, ok := live[def.Label]; ok {
		rec := rec
		v.Live = &rec
	}
	v.State = DeriveState(v.Live)
	return v
}

func sortViews(views []JobView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Label != views[j].Label {
			return views[i].Label < views[j].Label
		}
		return views[i].Path < views[j].Path
	})
}

// snapshot fetches live state and scans all configured directories.
func (r *Reconciler) snapshot(ctx context.Context) ([]JobView, map[string]LiveJobRecord, error) {
	live, err := r.Client.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return Scan(r.Dirs, live, r.Log), live, nil
}

// ListManagedAgents returns only definitions whose label carries the
// management prefix — the tool's own namespace, kept apart from whatever
// else the host has installed.
func (r *Reconciler) ListManagedAgents(ctx context.Context) ([]JobView, error) {
	views, _, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	managed := views[:0:0]
	for _, v := range views {
		if strings.HasPrefix(v.Label, r.Prefix) {
			managed = append(managed, v)
		}
	}
	return managed, nil
}

// ListAllJobs returns the unrestricted join. Live labels with no matching
// definition file are surfaced too (no program, unknown scope): nothing
// running is silently hidden. Labels are not deduplicated across scopes —
// the same label in two scope directories is two genuinely distinct jobs.
func (r *Reconciler) ListAllJobs(ctx context.Context) ([]JobView, error) {
	views, live, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, v := range views {
		seen[v.Label] = true
	}
	var orphans []JobView
	for label, rec := range live {
		if seen[label] {
			continue
		}
		rec := rec
		orphans = append(orphans, JobView{
			Label: label,
			Scope: ScopeUnknown,
			Live:  &rec,
			State: DeriveState(&rec),
		})
	}
	sortViews(orphans)
	return append(views, orphans...), nil
}

// FindManaged locates one managed definition by label.
func (r *Reconciler) FindManaged(ctx context.Context, label string) (JobView, bool, error) {
	views, err := r.ListManagedAgents(ctx)
	if err != nil {
		return JobView{}, false, err
	}
	for _, v := range views {
		if v.Label == label {
			return v, true, nil
		}
	}
	return JobView{}, false, nil
}
