package launchd

import (
	"context"
	"errors"
	"testing"
	"time"

	"launchdeck/pkg/execx"
	"launchdeck/pkg/logx"
)

// fakeRunner replays scripted results and records invocations.
type fakeRunner struct {
	calls   [][]string
	results []execx.Result
	errs    []error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, _ time.Duration) (execx.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	i := len(f.calls) - 1
	var res execx.Result
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func newClient(r execx.Runner) *Client {
	return &Client{Runner: r, UID: 501, Log: logx.Nop()}
}

const listOutput = `PID	Status	Label
412	0	com.example.worker
-	0	com.example.idle
-	1	com.example.flaky
-	-	com.example.fresh
`

func TestListParsesAndClassifies(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{results: []execx.Result{{Stdout: listOutput}}}
	live, err := newClient(fake).List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(live) != 4 {
		t.Fatalf("len(live) = %d, want 4 (header must be skipped)", len(live))
	}

	tests := []struct {
		label string
		want  JobState
	}{
		{"com.example.worker", StateRunning},
		{"com.example.idle", StateLoadedIdle},
		{"com.example.flaky", StateCrashed},
		{"com.example.fresh", StateLoadedIdle},
	}
	for _, tt := range tests {
		rec, ok := live[tt.label]
		if !ok {
			t.Fatalf("label %s missing from listing", tt.label)
		}
		if got := DeriveState(&rec); got != tt.want {
			t.Errorf("DeriveState(%s) = %s, want %s", tt.label, got, tt.want)
		}
	}

	if rec := live["com.example.worker"]; rec.PID == nil || *rec.PID != 412 {
		t.Fatalf("worker PID = %v, want 412", rec.PID)
	}
	// Running wins regardless of the exit column.
	runningWithExit := LiveJobRecord{Label: "x", PID: intp(99), LastExit: intp(1)}
	if got := DeriveState(&runningWithExit); got != StateRunning {
		t.Fatalf("running job with stale exit classified %s", got)
	}
	// Not in the listing at all: unloaded.
	if got := DeriveState(nil); got != StateUnloaded {
		t.Fatalf("DeriveState(nil) = %s, want unloaded", got)
	}
}

func intp(n int) *int { return &n }

func TestUnloadIdempotent(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{results: []execx.Result{
		{},
		{ExitCode: 3, Stderr: "Boot-out failed: 3: No such process"},
	}}
	c := newClient(fake)

	if err := c.Unload(context.Background(), ScopeUserAgent, "com.x.demo"); err != nil {
		t.Fatalf("first Unload error: %v", err)
	}
	if err := c.Unload(context.Background(), ScopeUserAgent, "com.x.demo"); err != nil {
		t.Fatalf("second Unload must be idempotent, got: %v", err)
	}
	if got := fake.calls[0]; got[1] != "bootout" || got[2] != "gui/501/com.x.demo" {
		t.Fatalf("unexpected invocation: %v", got)
	}
}

func TestUnloadRealFailureSurfacesStderr(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{results: []execx.Result{
		{ExitCode: 1, Stderr: "Boot-out failed: 5: Input/output error"},
	}}
	err := newClient(fake).Unload(context.Background(), ScopeSystemDaemon, "com.x.demo")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cmdErr.Op != "unload" || cmdErr.Target != "system/com.x.demo" {
		t.Fatalf("CommandError = %+v", cmdErr)
	}
}

func TestReloadStopsAfterRealUnloadFailure(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{results: []execx.Result{
		{ExitCode: 1, Stderr: "Boot-out failed: 5: Input/output error"},
	}}
	c := newClient(fake)
	err := c.Reload(context.Background(), ScopeUserAgent, "com.x.demo", "/tmp/com.x.demo.plist")
	if err == nil {
		t.Fatal("expected reload to fail")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("load was attempted after a real unload failure: %v", fake.calls)
	}
}

func TestReloadAfterAbsentUnload(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{results: []execx.Result{
		{ExitCode: 3, Stderr: "Boot-out failed: 3: No such process"},
		{},
	}}
	c := newClient(fake)
	if err := c.Reload(context.Background(), ScopeUserAgent, "com.x.demo", "/tmp/com.x.demo.plist"); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("calls = %v, want bootout then bootstrap", fake.calls)
	}
	if got := fake.calls[1]; got[1] != "bootstrap" || got[2] != "gui/501" || got[3] != "/tmp/com.x.demo.plist" {
		t.Fatalf("unexpected load invocation: %v", got)
	}
}

func TestListPropagatesRunnerError(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{errs: []error{execx.ErrTimeout}}
	_, err := newClient(fake).List(context.Background())
	if !errors.Is(err, execx.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
