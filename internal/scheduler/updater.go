// Package scheduler runs update passes in the background.
//
// An Updater runs one pass at a time. Triggers that arrive while a pass is
// running coalesce into at most one follow-up pass, so a burst of change
// notifications never queues a burst of passes.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pass performs one update.
type Pass func(ctx context.Context) error

// Updater runs passes when triggered and, optionally, periodically.
//
// Thread-safety: Trigger and Sync are safe for concurrent use. Run must be
// called once.
type Updater struct {
	pass     Pass
	logger   *slog.Logger
	interval time.Duration

	// signal coalesces triggers (buffered, size 1).
	signal chan struct{}

	mu       sync.Mutex
	started  uint64
	finished uint64
	lastErr  error
	done     chan struct{} // closed when a pass finishes
}

// Option configures an Updater.
type Option func(*Updater)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Updater) { u.logger = l }
}

// WithInterval makes Run start a pass every d in addition to triggered
// passes. Zero disables periodic passes.
func WithInterval(d time.Duration) Option {
	return func(u *Updater) { u.interval = d }
}

// New creates an Updater running pass.
func New(pass Pass, opts ...Option) *Updater {
	u := &Updater{
		pass:   pass,
		logger: slog.Default(),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Trigger requests a pass. It never blocks.
func (u *Updater) Trigger() {
	select {
	case u.signal <- struct{}{}:
	default:
	}
}

// Sync requests a pass and waits until a pass that started after the call
// has finished. It returns that pass's error.
func (u *Updater) Sync(ctx context.Context) error {
	u.mu.Lock()
	target := u.started + 1
	u.mu.Unlock()
	u.Trigger()

	for {
		u.mu.Lock()
		if u.finished >= target {
			err := u.lastErr
			u.mu.Unlock()
			return err
		}
		done := u.done
		u.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Passes returns how many passes have finished.
func (u *Updater) Passes() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.finished
}

// Run executes passes until ctx is cancelled. A failed pass is logged and
// does not stop the loop.
func (u *Updater) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if u.interval > 0 {
		t := time.NewTicker(u.interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-u.signal:
		case <-tick:
		}
		u.runPass(ctx)
	}
}

func (u *Updater) runPass(ctx context.Context) {
	u.mu.Lock()
	u.started++
	n := u.started
	u.mu.Unlock()

	err := u.pass(ctx)
	if err != nil && ctx.Err() == nil {
		u.logger.Warn("update pass failed", "pass", n, "error", err)
	}

	u.mu.Lock()
	u.finished = n
	u.lastErr = err
	close(u.done)
	u.done = make(chan struct{})
	u.mu.Unlock()
}
