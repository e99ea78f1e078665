// Package logstream keeps a user's local replica in step with the server's
// log stream.
//
// A wallet moves through four states, derived from its stored LogStream:
//
//	UNINITIALIZED      no log cursor yet; Sync provisions the replica first
//	LOADING_TRANSFERS  cursor set, the transfer bootstrap has not finished
//	STREAMING          following the forthcoming log pages
//	BROKEN             a gap was detected; only Reprovision recovers
//
// Each log page is applied in one store transaction together with the
// advanced cursor, so an interrupted sync either applied a page completely
// or not at all.
package logstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/transport"
)

// State is the synchronization state of a wallet.
type State int

const (
	StateUninitialized State = iota
	StateLoadingTransfers
	StateStreaming
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoadingTransfers:
		return "LOADING_TRANSFERS"
	case StateStreaming:
		return "STREAMING"
	case StateBroken:
		return "BROKEN"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateOf derives the state from a stored log stream cursor.
func StateOf(ls records.LogStream) State {
	switch {
	case ls.IsBroken:
		return StateBroken
	case ls.ForthcomingURI == "":
		return StateUninitialized
	case !ls.LoadedTransfers:
		return StateLoadingTransfers
	default:
		return StateStreaming
	}
}

// Defaults.
const (
	DefaultMaxParallel           = 8
	DefaultFetchTimeoutBase      = 10 * time.Second
	DefaultPageTimeout           = 30 * time.Second
	DefaultTransferDeletionDelay = 5 * 24 * time.Hour
)

// Synchronizer applies the server log stream to local storage.
type Synchronizer struct {
	store  *store.Store
	client transport.Client
	logger *slog.Logger
	now    func() time.Time

	maxParallel           int
	fetchTimeoutBase      time.Duration
	pageTimeout           time.Duration
	transferDeletionDelay time.Duration
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithClock sets the time source used to stamp actions and tasks.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithMaxParallel bounds the number of concurrent object fetches.
func WithMaxParallel(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithFetchTimeoutBase sets the per-round timeout of parallel fetches.
func WithFetchTimeoutBase(d time.Duration) Option {
	return func(s *Synchronizer) { s.fetchTimeoutBase = d }
}

// WithPageTimeout sets the timeout for fetching one log or list page.
func WithPageTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.pageTimeout = d }
}

// WithTransferDeletionDelay sets how long a successful transfer is kept on
// the server before a DeleteTransfer task removes it.
func WithTransferDeletionDelay(d time.Duration) Option {
	return func(s *Synchronizer) { s.transferDeletionDelay = d }
}

// New creates a Synchronizer.
func New(s *store.Store, c transport.Client, opts ...Option) *Synchronizer {
	sy := &Synchronizer{
		store:                 s,
		client:                c,
		logger:                slog.Default(),
		now:                   time.Now,
		maxParallel:           DefaultMaxParallel,
		fetchTimeoutBase:      DefaultFetchTimeoutBase,
		pageTimeout:           DefaultPageTimeout,
		transferDeletionDelay: DefaultTransferDeletionDelay,
	}
	for _, opt := range opts {
		opt(sy)
	}
	return sy
}

// State returns the current synchronization state of a user's wallet.
func (s *Synchronizer) State(ctx context.Context, userID int64) (State, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return StateUninitialized, err
	}
	return StateOf(w.LogStream), nil
}

// Sync brings the replica of a user up to date: it provisions an
// uninitialized wallet, finishes the transfer bootstrap if needed, then
// applies every available log page.
//
// A broken log stream fails with BrokenLogStream until Reprovision runs.
func (s *Synchronizer) Sync(ctx context.Context, userID int64) error {
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	if StateOf(w.LogStream) == StateUninitialized {
		if err := s.Reprovision(ctx, userID); err != nil {
			return err
		}
		if w, err = s.store.GetWallet(ctx, userID); err != nil {
			return err
		}
	}

	switch StateOf(w.LogStream) {
	case StateBroken:
		return fault.New(fault.KindBrokenLogStream, "sync",
			fmt.Sprintf("log stream of user %d is broken", userID))
	case StateLoadingTransfers:
		if err := s.loadTransfers(ctx, w); err != nil {
			return fmt.Errorf("load transfers: %w", err)
		}
		w.LogStream.LoadedTransfers = true
	}
	return s.stream(ctx, w.UserID, w.LogStream)
}
