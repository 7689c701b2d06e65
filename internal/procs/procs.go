// Package procs backs the "running processes" view. It is a plain
// list-and-sort utility around gopsutil, separate from the scheduling core.
package procs

import (
	"context"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Proc is one row of the process table.
type Proc struct {
	PID     int32
	Name    string
	RSS     uint64 // resident set, bytes
	Cmdline string
}

// Snapshot lists every visible process, sorted by pid. Processes that
// disappear mid-enumeration (or deny access) are skipped, not errors.
func Snapshot(ctx context.Context) ([]Proc, error) {
	list, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Proc, 0, len(list))
	for _, p := range list {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		row := Proc{PID: p.Pid, Name: name}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			row.RSS = mi.RSS
		}
		if cl, err := p.CmdlineWithContext(ctx); err == nil {
			row.Cmdline = strings.TrimSpace(cl)
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// Filter returns the rows whose name or command line contains needle
// (case-insensitive). An empty needle returns rows unchanged.
func Filter(rows []Proc, needle string) []Proc {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Cmdline), needle) {
			out = append(out, r)
		}
	}
	return out
}
