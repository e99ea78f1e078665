package actions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
)

// ResolveAckAccountInfo records in the account knowledge that the user has
// seen the reported account info. When the debtor info document changed,
// the new document is parsed and every declared value that differs from
// the account's configuration gets its own approval action.
//
// The outcome shows the first approval action created, or the account.
func (m *Manager) ResolveAckAccountInfo(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	ack := a.AckAccountInfo
	if ack == nil {
		return Outcome{}, fmt.Errorf("resolve ack: action %d is a %s", a.ActionID, a.Type)
	}
	d, err := m.account(a.AccountURI)
	if err != nil {
		return Outcome{}, err
	}
	if d.Info.LatestUpdateID > ack.InfoLatestUpdateID {
		// A newer info arrived; the synchronizer replaces this action.
		return Outcome{}, fault.New(fault.KindRecordDoesNotExist, "resolve ack",
			fmt.Sprintf("action %d is outdated", a.ActionID))
	}

	k := d.Knowledge
	data := k.DebtorData
	if ack.Changes.Info && ack.DebtorInfo != nil && ack.DebtorInfo.IRI != "" {
		parsed, err := m.loadDebtorInfo(ctx, ack.DebtorInfo.IRI, d.DebtorURI())
		if err != nil {
			return Outcome{}, err
		}
		data = &parsed
	}

	rate, changedAt := ack.InterestRate, ack.InterestRateChangedAt
	knowledge, err := patch(ctx, m, "update knowledge", k.URI, knowledgeBody{
		Type:                  canonical.TypeAccountKnowledge,
		InterestRate:          &rate,
		InterestRateChangedAt: &changedAt,
		Identity:              ack.Identity,
		DebtorInfo:            ack.DebtorInfo,
		ConfigError:           ack.ConfigError,
		DebtorData:            data,
		LatestUpdateID:        k.LatestUpdateID + 1,
	}, canonical.MapAccountKnowledge, canonical.AccountKnowledgeURI)
	if err != nil {
		return Outcome{}, err
	}

	var first *records.Action
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := m.putObjects(ctx, tx, knowledge); err != nil {
			return err
		}
		if err := tx.DeleteAction(ctx, a.ActionID); err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		for _, follow := range m.approvals(d, *data) {
			stored, err := tx.ReplaceAccountAction(ctx, follow)
			if err != nil {
				return err
			}
			if first == nil {
				first = &stored
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if first != nil {
		return showAction(*first), nil
	}
	return showAccount(a.AccountURI), nil
}

// approvals builds the approval actions for declared debtor data that
// differs from the account's display and exchange.
func (m *Manager) approvals(d *accounts.FullData, data canonical.DebtorData) []records.Action {
	base := records.Action{UserID: m.userID, CreatedAt: m.now(), AccountURI: d.URI()}
	var out []records.Action

	if data.DebtorName != d.DebtorName() {
		a := base
		a.Type = records.ActionApproveDebtorName
		a.ApproveDebtorName = &records.ApproveDebtorName{
			DebtorName:       data.DebtorName,
			EditedDebtorName: data.DebtorName,
		}
		out = append(out, a)
	}

	unit := ""
	if d.Display.Unit != nil {
		unit = *d.Display.Unit
	}
	if data.AmountDivisor != d.Display.AmountDivisor || data.DecimalPlaces != d.Display.DecimalPlaces || data.Unit != unit {
		a := base
		a.Type = records.ActionApproveAmountDisplay
		a.ApproveAmountDisplay = &records.ApproveAmountDisplay{
			AmountDivisor: data.AmountDivisor,
			DecimalPlaces: data.DecimalPlaces,
			Unit:          data.Unit,
		}
		out = append(out, a)
	}

	if data.Peg != nil && (d.Exchange.Peg == nil || !isStandardPeg(*d.Exchange.Peg, *data.Peg, m.index)) {
		a := base
		a.Type = records.ActionApprovePeg
		a.ApprovePeg = &records.ApprovePeg{
			Peg:             *data.Peg,
			PeggedDebtorURI: data.Peg.DebtorIdentity.URI,
		}
		out = append(out, a)
	}
	return out
}

// ResolveApproveDebtorName sets the account's display name to the edited
// name, which defaults to the declared one.
func (m *Manager) ResolveApproveDebtorName(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	p := a.ApproveDebtorName
	if p == nil {
		return Outcome{}, fmt.Errorf("resolve debtor name: action %d is a %s", a.ActionID, a.Type)
	}
	if p.EditedDebtorName == "" {
		return Outcome{}, fault.New(fault.KindInvalidDocument, "resolve debtor name", "empty debtor name")
	}
	d, err := m.account(a.AccountURI)
	if err != nil {
		return Outcome{}, err
	}
	if p.EditedDebtorName != d.DebtorName() {
		name := p.EditedDebtorName
		display, err := patch(ctx, m, "update display", d.Display.URI, displayBody{
			Type:           canonical.TypeAccountDisplay,
			DebtorName:     &name,
			AmountDivisor:  d.Display.AmountDivisor,
			DecimalPlaces:  d.Display.DecimalPlaces,
			Unit:           d.Display.Unit,
			KnownDebtor:    d.Display.KnownDebtor,
			LatestUpdateID: d.Display.LatestUpdateID + 1,
		}, canonical.MapAccountDisplay, canonical.AccountDisplayURI)
		if err := m.save(ctx, display, err); err != nil {
			return Outcome{}, err
		}
	}
	if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
		return Outcome{}, err
	}
	return showAccount(a.AccountURI), nil
}

// ResolveApproveAmountDisplay switches the account to the declared amount
// display when the user approves, and just deletes the action when they
// reject.
func (m *Manager) ResolveApproveAmountDisplay(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	p := a.ApproveAmountDisplay
	if p == nil {
		return Outcome{}, fmt.Errorf("resolve amount display: action %d is a %s", a.ActionID, a.Type)
	}
	if p.EditedApprove == nil {
		return Outcome{}, fault.New(fault.KindUnprocessableEntity, "resolve amount display", "no choice made")
	}
	if *p.EditedApprove {
		d, err := m.account(a.AccountURI)
		if err != nil {
			return Outcome{}, err
		}
		unit := p.Unit
		display, err := patch(ctx, m, "update display", d.Display.URI, displayBody{
			Type:           canonical.TypeAccountDisplay,
			DebtorName:     d.Display.DebtorName,
			AmountDivisor:  p.AmountDivisor,
			DecimalPlaces:  p.DecimalPlaces,
			Unit:           &unit,
			KnownDebtor:    d.Display.KnownDebtor,
			LatestUpdateID: d.Display.LatestUpdateID + 1,
		}, canonical.MapAccountDisplay, canonical.AccountDisplayURI)
		if err := m.save(ctx, display, err); err != nil {
			return Outcome{}, err
		}
	}
	if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
		return Outcome{}, err
	}
	return showAccount(a.AccountURI), nil
}

// ResolveApprovePeg approves or rejects a declared peg. Approving first
// needs a confirmed account with the pegged debtor (see InitializeAccount
// and ConfirmCreateAccount), then checks that:
//
//   - the pegged account describes the coin the peg names, unless the user
//     overrides a mismatch;
//   - the pegged account displays amounts the way the peg expects;
//   - the peg does not close a cycle.
//
// A detected coin mismatch is recorded in the action and the action is
// shown again for the user to decide.
func (m *Manager) ResolveApprovePeg(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	p := a.ApprovePeg
	if p == nil {
		return Outcome{}, fmt.Errorf("resolve peg: action %d is a %s", a.ActionID, a.Type)
	}
	if p.EditedApprove == nil {
		return Outcome{}, fault.New(fault.KindUnprocessableEntity, "resolve peg", "no choice made")
	}
	if !*p.EditedApprove {
		if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
			return Outcome{}, err
		}
		return showAccount(a.AccountURI), nil
	}
	if p.State == nil || p.State.Status != records.InitLocallyFinalized {
		return Outcome{}, fault.New(fault.KindUnprocessableEntity, "resolve peg",
			"the pegged account is not confirmed yet")
	}

	d, err := m.account(a.AccountURI)
	if err != nil {
		return Outcome{}, err
	}
	pegged, err := m.account(p.State.AccountURI)
	if err != nil {
		return Outcome{}, err
	}

	mismatch := coinMismatch(pegged, p.Peg)
	if mismatch && !p.IgnoreCoinMismatch {
		if !p.CoinMismatch {
			next := a.Clone()
			next.ApprovePeg.CoinMismatch = true
			if err := m.replace(ctx, a, next); err != nil {
				return Outcome{}, err
			}
		}
		return showAction(a), nil
	}

	unit := ""
	if pegged.Display.Unit != nil {
		unit = *pegged.Display.Unit
	}
	pd := p.Peg.Display
	if pegged.Display.AmountDivisor != pd.AmountDivisor || pegged.Display.DecimalPlaces != pd.DecimalPlaces || unit != pd.Unit {
		return Outcome{}, fault.New(fault.KindPegDisplayMismatch, "resolve peg",
			fmt.Sprintf("%s does not display amounts as the peg expects", pegged.URI()))
	}
	if m.index.WouldCycle(d.URI(), pegged.URI()) {
		return Outcome{}, fault.New(fault.KindCircularPeg, "resolve peg", d.URI())
	}

	resp, err := m.client.Patch(ctx, d.Exchange.URI, exchangeBody{
		Type:         canonical.TypeAccountExchange,
		Policy:       d.Exchange.Policy,
		MinPrincipal: d.Exchange.MinPrincipal,
		MaxPrincipal: d.Exchange.MaxPrincipal,
		Peg: &canonical.CurrencyPeg{
			Type:         "CurrencyPeg",
			ExchangeRate: p.Peg.ExchangeRate,
			Account:      canonical.ObjectReference{URI: pegged.URI()},
		},
		LatestUpdateID: d.Exchange.LatestUpdateID + 1,
	})
	if err != nil {
		if fault.KindOf(err) == fault.KindHTTP && fault.StatusOf(err) == http.StatusUnprocessableEntity {
			return Outcome{}, &fault.Error{Kind: fault.KindCircularPeg, Op: "resolve peg",
				Status: http.StatusUnprocessableEntity, Err: err}
		}
		return Outcome{}, fault.FromHTTP("resolve peg", err, http.StatusConflict, http.StatusNotFound)
	}
	exchange, err := canonical.FromResponse(resp, canonical.MapAccountExchange, canonical.AccountExchangeURI)
	if err := m.save(ctx, exchange, err); err != nil {
		return Outcome{}, err
	}
	if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
		return Outcome{}, err
	}
	m.logger.Info("peg approved", "account_uri", d.URI(), "pegged_uri", pegged.URI())
	return showAccount(a.AccountURI), nil
}

// coinMismatch reports whether the pegged account's known debtor data
// disagrees with the coin the peg names.
func coinMismatch(pegged *accounts.FullData, peg canonical.Peg) bool {
	known := pegged.Knowledge.DebtorData
	if known == nil {
		return true
	}
	return accounts.DebtorKey(known.DebtorIdentity.URI) != accounts.DebtorKey(peg.DebtorIdentity.URI) ||
		known.LatestDebtorInfo.URI != peg.LatestDebtorInfo.URI
}
