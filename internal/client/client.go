// Package client wires the wallet components together: local storage, the
// server transport, the log stream synchronizer and, per user, the
// accounts index, task runner, action manager and update scheduler.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/actions"
	"github.com/roach88/creditors/internal/config"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/interact"
	"github.com/roach88/creditors/internal/logstream"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/scheduler"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/tasks"
	"github.com/roach88/creditors/internal/transport"
)

// Client owns the store and the server connection shared by all users.
type Client struct {
	cfg       config.Config
	store     *store.Store
	transport transport.Client
	sync      *logstream.Synchronizer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransport replaces the HTTP transport built from the configuration.
func WithTransport(t transport.Client) Option {
	return func(c *Client) { c.transport = t }
}

// WithClock sets the time source passed to every component.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Open opens the configured database and prepares the transport.
func Open(cfg config.Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		token, err := cfg.ResolveToken()
		if err != nil {
			return nil, err
		}
		c.transport = transport.NewHTTP(transport.StaticToken(token),
			transport.WithDefaultTimeout(cfg.HTTP.Timeout),
			transport.WithNow(c.now),
		)
	}

	s, err := store.Open(cfg.Database, store.WithLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	c.store = s
	c.sync = logstream.New(s, c.transport,
		logstream.WithLogger(c.logger),
		logstream.WithClock(c.now),
		logstream.WithMaxParallel(cfg.Sync.MaxParallelFetches),
		logstream.WithFetchTimeoutBase(cfg.Sync.FetchTimeoutBase),
		logstream.WithPageTimeout(cfg.Sync.PageTimeout),
	)
	return c, nil
}

// Close closes the database.
func (c *Client) Close() error {
	return c.store.Close()
}

// Store returns the local store.
func (c *Client) Store() *store.Store {
	return c.store
}

// Provision registers the wallet at walletURI, or finds it when it is
// already registered, and returns its user id.
func (c *Client) Provision(ctx context.Context, walletURI string) (int64, error) {
	return c.sync.Provision(ctx, walletURI)
}

// Wallets returns every registered wallet.
func (c *Client) Wallets(ctx context.Context) ([]records.Wallet, error) {
	return c.store.ListWallets(ctx)
}

// DefaultUser returns the user id of the only registered wallet.
func (c *Client) DefaultUser(ctx context.Context) (int64, error) {
	wallets, err := c.store.ListWallets(ctx)
	if err != nil {
		return 0, err
	}
	switch len(wallets) {
	case 0:
		return 0, fault.New(fault.KindRecordDoesNotExist, "default user", "no wallet provisioned")
	case 1:
		return wallets[0].UserID, nil
	}
	return 0, fmt.Errorf("default user: %d wallets provisioned, choose one", len(wallets))
}

// User is the wiring of one user's components.
type User struct {
	ID      int64
	Index   *accounts.Index
	Actions *actions.Manager
	Tasks   *tasks.Runner
	Updater *scheduler.Updater

	client *Client
}

// User loads the components of userID. Close releases them.
func (c *Client) User(ctx context.Context, userID int64) (*User, error) {
	if _, err := c.store.GetWallet(ctx, userID); err != nil {
		return nil, err
	}
	idx := accounts.New(c.store, userID, accounts.WithLogger(c.logger))
	if err := idx.Load(ctx); err != nil {
		return nil, err
	}
	u := &User{
		ID:    userID,
		Index: idx,
		Actions: actions.New(c.store, c.transport, idx, userID,
			actions.WithLogger(c.logger),
			actions.WithClock(c.now),
		),
		Tasks: tasks.New(c.store, c.transport,
			tasks.WithLogger(c.logger),
			tasks.WithClock(c.now),
			tasks.WithBatchSize(c.cfg.Tasks.BatchSize),
			tasks.WithRetryDelay(c.cfg.Tasks.RetryDelay),
			tasks.WithMaxAttempts(c.cfg.Tasks.MaxAttempts),
		),
		client: c,
	}
	u.Updater = scheduler.New(u.Update,
		scheduler.WithLogger(c.logger.With("user_id", userID)),
		scheduler.WithInterval(c.cfg.Update.Interval),
	)
	return u, nil
}

// Close stops index maintenance.
func (u *User) Close() {
	u.Index.Close()
}

// Update applies the server log stream, then runs the tasks that are due.
// Tasks run even when the sync fails, unless the log stream is broken.
func (u *User) Update(ctx context.Context) error {
	syncErr := u.client.sync.Sync(ctx, u.ID)
	if fault.Is(syncErr, fault.KindBrokenLogStream) {
		return syncErr
	}
	n, err := u.Tasks.ExecuteReady(ctx, u.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		u.client.logger.Debug("tasks executed", "user_id", u.ID, "count", n)
	}
	return syncErr
}

// Reprovision reloads the user's replica from the server.
func (u *User) Reprovision(ctx context.Context) error {
	return u.client.sync.Reprovision(ctx, u.ID)
}

// State returns the synchronization state of the user's wallet.
func (u *User) State(ctx context.Context) (logstream.State, error) {
	return u.client.sync.State(ctx, u.ID)
}

// Coordinator returns an interaction coordinator reporting to p. A broken
// log stream found by an interaction triggers a reprovision.
func (u *User) Coordinator(s *interact.Session, p interact.Presenter) *interact.Coordinator {
	return interact.NewCoordinator(s, p,
		interact.WithLogger(u.client.logger),
		interact.WithWaitingDelay(u.client.cfg.Interaction.WaitingDelay),
		interact.WithResync(u.Reprovision),
	)
}
