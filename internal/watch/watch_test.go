package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"launchdeck/pkg/logx"
)

func TestPollerRunsImmediatelyAndTicks(t *testing.T) {
	t.Parallel()
	var passes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &Poller{
		Interval: 20 * time.Millisecond,
		Fn: func(context.Context) error {
			passes.Add(1)
			return nil
		},
		Log: logx.Nop(),
	}
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for passes.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d passes before deadline", passes.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancellation")
	}
}

func TestPollerKickTriggersExtraPass(t *testing.T) {
	t.Parallel()
	var passes atomic.Int32
	kick := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &Poller{
		Interval: time.Hour, // ticker effectively silent
		Fn: func(context.Context) error {
			passes.Add(1)
			return nil
		},
		Log:  logx.Nop(),
		Kick: kick,
	}
	go p.Run(ctx)

	// Initial pass.
	waitFor(t, func() bool { return passes.Load() == 1 })
	kick <- struct{}{}
	waitFor(t, func() bool { return passes.Load() == 2 })
}

func TestDirsCoalescesBurstIntoTrailingKick(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kick, err := Dirs(ctx, []string{dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Dirs: %v", err)
	}

	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("a.plist", "one")
	select {
	case <-kick:
	case <-time.After(2 * time.Second):
		t.Fatal("no kick after first write")
	}

	// Rapid writes inside the limiter window are denied individually but
	// must still surface as one trailing kick once the burst settles.
	write("a.plist", "two")
	write("b.plist", "three")
	select {
	case <-kick:
	case <-time.After(2 * time.Second):
		t.Fatal("burst-trailing writes produced no kick")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not reached before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
