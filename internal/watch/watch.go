// Package watch drives live refresh. The core holds no state between
// reconciliation passes, so "live view" is just running a pass on a timer —
// this package owns that timer, plus an fsnotify watcher that kicks an
// extra pass when a definition file changes on disk.
package watch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Poller runs fn on a fixed interval. The caller owns it: cancellation
// happens between iterations, never mid-pass — an in-flight pass (and any
// external command it spawned) runs to completion or timeout.
type Poller struct {
	Interval time.Duration
	Fn       func(ctx context.Context) error
	Log      zerolog.Logger

	// Kick triggers an immediate extra pass when signaled (optional).
	Kick <-chan struct{}
}

// Run executes passes until ctx is cancelled. The first pass runs
// immediately. A failing pass is logged and does not stop the loop.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pass(ctx)
		case <-p.Kick:
			p.pass(ctx)
		}
	}
}

func (p *Poller) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.Fn(ctx); err != nil {
		p.Log.Warn().Err(err).Msg("refresh pass failed")
	}
}

// Dirs watches definition directories and emits on the returned channel
// when any plist in them changes. Editor save bursts (write + chmod +
// rename) collapse into one emission via a rate limiter. Directories that
// do not exist are skipped.
func Dirs(ctx context.Context, paths []string, log zerolog.Logger) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watched := 0
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			log.Debug().Str("dir", p).Err(err).Msg("not watching directory")
			continue
		}
		watched++
	}
	log.Debug().Int("dirs", watched).Msg("watching definition directories")

	kick := make(chan struct{}, 1)
	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)

	go func() {
		defer w.Close()

		send := func() {
			select {
			case kick <- struct{}{}:
			default: // a pass is already pending
			}
		}

		// Events the limiter denies are coalesced into one trailing kick
		// instead of dropped: an editor save burst (create + write + chmod)
		// must still refresh on its last event, not only its first.
		const settle = 250 * time.Millisecond
		trailing := time.NewTimer(settle)
		if !trailing.Stop() {
			<-trailing.C
		}

		for {
			select {
			case <-ctx.Done():
				trailing.Stop()
				return
			case <-trailing.C:
				send()
			case ev, ok := <-w.Events:
				if !ok {
					trailing.Stop()
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if limiter.Allow() {
					send()
					continue
				}
				if !trailing.Stop() {
					select {
					case <-trailing.C:
					default:
					}
				}
				trailing.Reset(settle)
			case err, ok := <-w.Errors:
				if !ok {
					trailing.Stop()
					return
				}
				log.Debug().Err(err).Msg("fsnotify error")
			}
		}
	}()
	return kick, nil
}
