// Package accounts keeps an in-memory index over the locally stored
// accounts of one user.
//
// The index is rebuilt from storage by Load and kept current by a commit
// hook: every committed change set that touches an account's objects
// reloads that account. Lookups are by account URI and by debtor identity
// URI.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/store"
)

// FullData joins an account core with its sub-objects. A sub-object that
// has not been stored yet is nil.
type FullData struct {
	Core      *canonical.AccountCore
	Display   *canonical.AccountDisplay
	Config    *canonical.AccountConfig
	Exchange  *canonical.AccountExchange
	Knowledge *canonical.AccountKnowledge
	Ledger    *canonical.AccountLedger
	Info      *canonical.AccountInfo
}

// URI returns the account URI.
func (d *FullData) URI() string {
	return d.Core.URI
}

// DebtorURI returns the debtor identity URI of the account.
func (d *FullData) DebtorURI() string {
	return d.Core.Debtor.URI
}

// DebtorName returns the display name the user confirmed for the debtor,
// or "".
func (d *FullData) DebtorName() string {
	if d.Display == nil || d.Display.DebtorName == nil {
		return ""
	}
	return *d.Display.DebtorName
}

// PeggedAccountURI returns the account the exchange peg points at, or "".
func (d *FullData) PeggedAccountURI() string {
	if d.Exchange == nil || d.Exchange.Peg == nil {
		return ""
	}
	return d.Exchange.Peg.Account.URI
}

// Index maps debtor identities and account URIs to account data.
type Index struct {
	store  *store.Store
	userID int64
	logger *slog.Logger

	mu       sync.RWMutex
	byURI    map[string]*FullData
	byDebtor map[string]string
	cancel   func()
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for reload failures.
func WithLogger(l *slog.Logger) Option {
	return func(x *Index) { x.logger = l }
}

// New creates an empty index for a user. Call Load before use.
func New(s *store.Store, userID int64, opts ...Option) *Index {
	x := &Index{
		store:    s,
		userID:   userID,
		logger:   slog.Default(),
		byURI:    make(map[string]*FullData),
		byDebtor: make(map[string]string),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Load builds the index from storage and subscribes to later commits.
// Calling Load again rebuilds the index.
func (x *Index) Load(ctx context.Context) error {
	x.mu.Lock()
	if x.cancel == nil {
		x.cancel = x.store.OnCommit(x.onCommit)
	}
	x.mu.Unlock()
	return x.reloadAll(ctx)
}

// Close stops following store commits.
func (x *Index) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cancel != nil {
		x.cancel()
		x.cancel = nil
	}
}

func (x *Index) onCommit(changes []store.Change) {
	ctx := context.Background()
	dirty := map[string]bool{}
	for _, c := range changes {
		if c.Kind != store.ChangeObject || c.UserID != x.userID {
			continue
		}
		if c.URI == "" {
			if err := x.reloadAll(ctx); err != nil {
				x.logger.Warn("accounts index reload failed", "user_id", x.userID, "error", err)
			}
			return
		}
		if c.AccountURI != "" {
			dirty[c.AccountURI] = true
		}
	}
	for uri := range dirty {
		if err := x.reload(ctx, uri); err != nil {
			x.logger.Warn("accounts index reload failed", "user_id", x.userID, "uri", uri, "error", err)
		}
	}
}

func (x *Index) reloadAll(ctx context.Context) error {
	cores, err := store.List[*canonical.AccountCore](ctx, x.store, x.userID, canonical.TypeAccount)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	byURI := make(map[string]*FullData, len(cores))
	for _, core := range cores {
		d, err := x.build(ctx, core.URI)
		if err != nil {
			return err
		}
		if d != nil {
			byURI[core.URI] = d
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.byURI = byURI
	x.byDebtor = make(map[string]string, len(byURI))
	for uri, d := range byURI {
		x.byDebtor[DebtorKey(d.DebtorURI())] = uri
	}
	return nil
}

func (x *Index) reload(ctx context.Context, accountURI string) error {
	d, err := x.build(ctx, accountURI)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.byURI[accountURI]; ok {
		key := DebtorKey(old.DebtorURI())
		if x.byDebtor[key] == accountURI {
			delete(x.byDebtor, key)
		}
		delete(x.byURI, accountURI)
	}
	if d != nil {
		x.byURI[accountURI] = d
		x.byDebtor[DebtorKey(d.DebtorURI())] = accountURI
	}
	return nil
}

// build reads an account and its sub-objects. It returns nil when the
// account core is not stored.
func (x *Index) build(ctx context.Context, accountURI string) (*FullData, error) {
	objects, err := x.store.ListAccountObjects(ctx, x.userID, accountURI)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountURI, err)
	}
	d := &FullData{}
	for _, obj := range objects {
		switch o := obj.(type) {
		case *canonical.AccountCore:
			d.Core = o
		case *canonical.AccountDisplay:
			d.Display = o
		case *canonical.AccountConfig:
			d.Config = o
		case *canonical.AccountExchange:
			d.Exchange = o
		case *canonical.AccountKnowledge:
			d.Knowledge = o
		case *canonical.AccountLedger:
			d.Ledger = o
		case *canonical.AccountInfo:
			d.Info = o
		}
	}
	if d.Core == nil {
		return nil, nil
	}
	return d, nil
}

// AccountURI returns the URI of the account with the given debtor.
func (x *Index) AccountURI(debtorIdentityURI string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	uri, ok := x.byDebtor[DebtorKey(debtorIdentityURI)]
	return uri, ok
}

// FullData returns the joined data of an account.
func (x *Index) FullData(accountURI string) (*FullData, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	d, ok := x.byURI[accountURI]
	return d, ok
}

// List returns all indexed accounts ordered by URI.
func (x *Index) List() []*FullData {
	x.mu.RLock()
	out := make([]*FullData, 0, len(x.byURI))
	for _, d := range x.byURI {
		out = append(out, d)
	}
	x.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URI() < out[j].URI() })
	return out
}

// PegChain follows configured exchange pegs starting at accountURI and
// returns the visited account URIs in order. The walk stops at an account
// without a peg, at a peg pointing outside the index, or before revisiting
// an account. cyclic reports the last case.
func (x *Index) PegChain(accountURI string) (chain []string, cyclic bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := map[string]bool{}
	uri := accountURI
	for uri != "" {
		if seen[uri] {
			return chain, true
		}
		d, ok := x.byURI[uri]
		if !ok {
			break
		}
		seen[uri] = true
		chain = append(chain, uri)
		uri = d.PeggedAccountURI()
	}
	return chain, false
}

// WouldCycle reports whether pegging accountURI to pegAccountURI would
// close a cycle of pegs.
func (x *Index) WouldCycle(accountURI, pegAccountURI string) bool {
	if accountURI == pegAccountURI {
		return true
	}
	chain, _ := x.PegChain(pegAccountURI)
	for _, uri := range chain {
		if uri == accountURI {
			return true
		}
	}
	return false
}

// DebtorKey normalizes a debtor identity URI for lookup. The scheme is
// case-insensitive; the rest is compared as is.
func DebtorKey(uri string) string {
	i := strings.Index(uri, ":")
	if i <= 0 {
		return uri
	}
	return strings.ToLower(uri[:i]) + uri[i:]
}
