package launchd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"launchdeck/pkg/execx"
)

// Client sequences launchctl invocations. It holds no job state; every call
// goes to the binary.
type Client struct {
	Runner  execx.Runner
	Bin     string // launchctl path, default "launchctl"
	UID     int    // uid for the gui/<uid> domain target
	Timeout time.Duration
	Log     zerolog.Logger
}

func (c *Client) bin() string {
	if c.Bin == "" {
		return "launchctl"
	}
	return c.Bin
}

func (c *Client) run(ctx context.Context, args ...string) (execx.Result, error) {
	return c.Runner.Run(ctx, c.bin(), args, c.Timeout)
}

// List fetches launchd's live job table, keyed by label.
//
// The listing is three whitespace-separated columns (pid, last exit status,
// label) with "-" placeholders and a header line, which is skipped.
func (c *Client) List(ctx context.Context) (map[string]LiveJobRecord, error) {
	res, err := c.run(ctx, "list")
	if err != nil {
		return nil, err
	}
	if !res.Ok() {
		return nil, &CommandError{Op: "list", ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	return parseListOutput(res.Stdout), nil
}

func parseListOutput(out string) map[string]LiveJobRecord {
	live := map[string]LiveJobRecord{}
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if i == 0 && fields[0] == "PID" {
			continue
		}
		rec := LiveJobRecord{Label: fields[2]}
		if pid, err := strconv.Atoi(fields[0]); err == nil {
			rec.PID = &pid
		}
		if code, err := strconv.Atoi(fields[1]); err == nil {
			rec.LastExit = &code
		}
		live[rec.Label] = rec
	}
	return live
}

// Load bootstraps the definition file into its scope's domain.
func (c *Client) Load(ctx context.Context, scope Scope, path string) error {
	target := scope.DomainTarget(c.UID)
	res, err := c.run(ctx, "bootstrap", target, path)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return &CommandError{Op: "load", Target: target, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	c.Log.Debug().Str("path", path).Str("target", target).Msg("job loaded")
	return nil
}

// Unload boots the label out of its domain. Unloading a job launchd does
// not know is success: unload is idempotent.
func (c *Client) Unload(ctx context.Context, scope Scope, label string) error {
	target := scope.DomainTarget(c.UID) + "/" + label
	res, err := c.run(ctx, "bootout", target)
	if err != nil {
		return err
	}
	if res.Ok() || isAlreadyAbsent(res.Stderr) {
		c.Log.Debug().Str("target", target).Msg("job unloaded")
		return nil
	}
	return &CommandError{Op: "unload", Target: target, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
}

// Kickstart runs the job immediately, restarting it if already running.
func (c *Client) Kickstart(ctx context.Context, scope Scope, label string) error {
	target := scope.DomainTarget(c.UID) + "/" + label
	res, err := c.run(ctx, "kickstart", "-k", target)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return &CommandError{Op: "kickstart", Target: target, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	return nil
}

// Reload is unload-then-load. A real unload failure stops the sequence; a
// load on top of a still-loaded job would double-register it.
func (c *Client) Reload(ctx context.Context, scope Scope, label, path string) error {
	if err := c.Unload(ctx, scope, label); err != nil {
		return fmt.Errorf("reload %s: %w", label, err)
	}
	if err := c.Load(ctx, scope, path); err != nil {
		return fmt.Errorf("reload %s: %w", label, err)
	}
	return nil
}

// isAlreadyAbsent matches the "no such process" error family launchctl
// emits when the target was never loaded (exact wording varies by macOS
// version).
func isAlreadyAbsent(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no such process") ||
		strings.Contains(s, "could not find specified service") ||
		strings.Contains(s, "no such service")
}
