// Package execx runs external commands with a hard deadline.
//
// It exists so the launchctl client (and anything else shelling out) gets
// uniform semantics: a non-zero exit is a normal Result for the caller to
// interpret, while launch failure, cancellation and timeout are errors.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a command did not exit before its deadline.
// The process is force-terminated first; no partial output is returned.
var ErrTimeout = errors.New("command timed out")

// Result holds the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Ok reports whether the command exited zero.
func (r Result) Ok() bool { return r.ExitCode == 0 }

// Runner is the seam tests (and fakes) implement.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error)
}

// Exec is the real Runner backed by os/exec.
type Exec struct{}

// DefaultTimeout bounds commands whose caller passes timeout <= 0.
const DefaultTimeout = 10 * time.Second

// Run starts name with args and waits up to timeout for it to exit.
//
// Stdout and stderr are drained concurrently with the process (os/exec copies
// into the buffers from dedicated goroutines once Start returns), so a child
// that fills a pipe while we wait cannot deadlock us.
func (Exec) Run(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return Result{}, ctx.Err()
	case <-timer.C:
		_ = cmd.Process.Kill()
		<-done // reap; Wait error after Kill is expected
		return Result{}, fmt.Errorf("%s after %s: %w", name, timeout, ErrTimeout)
	case err := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			return res, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return Result{}, fmt.Errorf("run %s: %w", name, err)
	}
}
