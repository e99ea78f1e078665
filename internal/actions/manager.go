// Package actions manages the durable records of multi-step user
// operations and resolves them against the server.
//
// An action is shown, edited and resolved. Showing re-derives everything
// it displays from local storage and drops the action when what it was
// about no longer exists. Edits are saved in the background through a
// Controller. Resolving sends the final edited state to the server with
// the version tokens it was based on; conflict-class failures leave the
// stored action untouched so the user can retry, unless an operation says
// otherwise.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/debtorinfo"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/payreq"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/transport"
)

// OutcomeKind tells the caller where to go after an operation.
type OutcomeKind int

const (
	// OutcomeShowAction means an action should be shown (ActionID).
	OutcomeShowAction OutcomeKind = iota + 1
	// OutcomeShowAccount means the account should be shown (AccountURI).
	OutcomeShowAccount
	// OutcomeShowTransfer means the transfer should be shown (TransferURI).
	OutcomeShowTransfer
	// OutcomeShowActions means the caller should go back to the action
	// list.
	OutcomeShowActions
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeShowAction:
		return "ShowAction"
	case OutcomeShowAccount:
		return "ShowAccount"
	case OutcomeShowTransfer:
		return "ShowTransfer"
	case OutcomeShowActions:
		return "ShowActions"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of a user-facing operation.
type Outcome struct {
	Kind        OutcomeKind
	ActionID    int64
	AccountURI  string
	TransferURI string
}

func showAction(a records.Action) Outcome {
	return Outcome{Kind: OutcomeShowAction, ActionID: a.ActionID}
}

func showAccount(uri string) Outcome {
	return Outcome{Kind: OutcomeShowAccount, AccountURI: uri}
}

// Manager creates, shows and resolves the actions of one user.
type Manager struct {
	store   *store.Store
	client  transport.Client
	index   *accounts.Index
	userID  int64
	logger  *slog.Logger
	now     func() time.Time
	tokens  records.TokenGenerator
	parser  debtorinfo.Parser
	encoder payreq.Encoder
	decoder payreq.Decoder
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTokens sets the generator of transfer UUIDs and payee references.
func WithTokens(g records.TokenGenerator) Option {
	return func(m *Manager) { m.tokens = g }
}

// WithDebtorInfoParser sets the debtor info document parser.
func WithDebtorInfoParser(p debtorinfo.Parser) Option {
	return func(m *Manager) { m.parser = p }
}

// WithPaymentRequestCodec sets the payment request encoder and decoder.
func WithPaymentRequestCodec(e payreq.Encoder, d payreq.Decoder) Option {
	return func(m *Manager) {
		m.encoder = e
		m.decoder = d
	}
}

// New creates a Manager for the user the index was built for.
func New(s *store.Store, c transport.Client, idx *accounts.Index, userID int64, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		client:  c,
		index:   idx,
		userID:  userID,
		logger:  slog.Default(),
		now:     time.Now,
		tokens:  records.UUIDGenerator{},
		parser:  debtorinfo.JSONParser{},
		encoder: payreq.Text{},
		decoder: payreq.Text{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UserID returns the user the manager acts for.
func (m *Manager) UserID() int64 {
	return m.userID
}

func (m *Manager) wallet(ctx context.Context) (records.Wallet, error) {
	return m.store.GetWallet(ctx, m.userID)
}

// account returns the full data of a locally known account, or
// RecordDoesNotExist.
func (m *Manager) account(accountURI string) (*accounts.FullData, error) {
	d, ok := m.index.FullData(accountURI)
	if !ok || d.Display == nil || d.Config == nil || d.Exchange == nil || d.Knowledge == nil || d.Info == nil {
		return nil, fault.New(fault.KindRecordDoesNotExist, "get account", accountURI)
	}
	return d, nil
}

// replace stores next in place of prev. A stale prev is reported as
// RecordDoesNotExist.
func (m *Manager) replace(ctx context.Context, prev, next records.Action) error {
	return m.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ReplaceAction(ctx, prev, next)
	})
}

// dropAction deletes an action whose precondition no longer holds and
// reports it as RecordDoesNotExist.
func (m *Manager) dropAction(ctx context.Context, a records.Action, why string) error {
	m.logger.Info("dropping stale action", "action_id", a.ActionID, "action_type", a.Type, "reason", why)
	if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
		return err
	}
	return fault.New(fault.KindRecordDoesNotExist, "show action",
		fmt.Sprintf("action %d: %s", a.ActionID, why))
}

// current re-reads a, so that a resolve never works from a version that
// is no longer stored.
func (m *Manager) current(ctx context.Context, a records.Action) (records.Action, error) {
	stored, err := m.store.GetAction(ctx, a.ActionID)
	if err != nil {
		return records.Action{}, err
	}
	if stored.UserID != m.userID {
		return records.Action{}, fault.New(fault.KindRecordDoesNotExist, "get action",
			fmt.Sprintf("action %d", a.ActionID))
	}
	return stored, nil
}

// DeleteAction removes an action. Deleting a missing action is not an
// error.
func (m *Manager) DeleteAction(ctx context.Context, actionID int64) error {
	return m.store.DeleteAction(ctx, actionID)
}

// checkCoinURI validates a debtor identity URI taken from a scanned coin.
func checkCoinURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || (u.Opaque == "" && u.Host == "") {
		return fault.New(fault.KindInvalidCoinURI, "check coin uri", uri)
	}
	return nil
}
