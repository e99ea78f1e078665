package actions

import (
	"context"
	"fmt"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
)

// EnsureUniqueAccountAction returns the account's ConfigAccount or
// UpdatePolicy action, creating it from the account's current settings
// when there is none. Calling it twice yields the same action.
func (m *Manager) EnsureUniqueAccountAction(ctx context.Context, actionType records.ActionType, accountURI string) (records.Action, error) {
	d, err := m.account(accountURI)
	if err != nil {
		return records.Action{}, err
	}
	a := records.Action{
		UserID:     m.userID,
		Type:       actionType,
		CreatedAt:  m.now(),
		AccountURI: accountURI,
	}
	switch actionType {
	case records.ActionConfigAccount:
		a.ConfigAccount = &records.ConfigAccount{
			EditedDebtorName:           d.DebtorName(),
			EditedNegligibleAmount:     d.Config.NegligibleAmount,
			EditedScheduledForDeletion: d.Config.ScheduledForDeletion,
			EditedAllowUnsafeDeletion:  d.Config.AllowUnsafeDeletion,
		}
	case records.ActionUpdatePolicy:
		adv, err := m.Advisory(ctx, accountURI)
		if err != nil {
			return records.Action{}, err
		}
		a.UpdatePolicy = &records.UpdatePolicy{
			EditedPolicy:            d.Exchange.Policy,
			EditedMinPrincipal:      d.Exchange.MinPrincipal,
			EditedMaxPrincipal:      d.Exchange.MaxPrincipal,
			EditedUseNonstandardPeg: adv.PegStatus == UsesNonstandardPeg,
			EditedIgnoreDeclaredPeg: adv.PegStatus == IgnoresDeclaredPeg,
		}
	default:
		return records.Action{}, fmt.Errorf("ensure account action: %s cannot be started by the user", actionType)
	}
	stored, _, err := m.store.EnsureAccountAction(ctx, a)
	return stored, err
}

// PegStatus describes how an account uses the peg its debtor declares.
type PegStatus string

const (
	UsesNoPeg          PegStatus = "UsesNoPeg"
	UsesStandardPeg    PegStatus = "UsesStandardPeg"
	UsesNonstandardPeg PegStatus = "UsesNonstandardPeg"
	IgnoresDeclaredPeg PegStatus = "IgnoresDeclaredPeg"
)

// Advisory is guidance shown next to an account's settings. It never
// prevents a resolution.
type Advisory struct {
	// NonstandardDisplay is set when amounts are displayed differently
	// than the debtor declares and no approval for the declared display is
	// pending.
	NonstandardDisplay bool
	PegStatus          PegStatus
}

// Advisory compares an account's configuration with what its debtor
// declares and with pending approvals.
func (m *Manager) Advisory(ctx context.Context, accountURI string) (Advisory, error) {
	d, err := m.account(accountURI)
	if err != nil {
		return Advisory{}, err
	}
	pendingDisplay, err := m.pending(ctx, records.ActionApproveAmountDisplay, accountURI)
	if err != nil {
		return Advisory{}, err
	}
	pendingPeg, err := m.pending(ctx, records.ActionApprovePeg, accountURI)
	if err != nil {
		return Advisory{}, err
	}
	return advise(d, m.index, pendingDisplay, pendingPeg), nil
}

func (m *Manager) pending(ctx context.Context, t records.ActionType, accountURI string) (bool, error) {
	_, found, err := m.store.FindAccountAction(ctx, m.userID, t, accountURI)
	return found, err
}

func advise(d *accounts.FullData, idx *accounts.Index, pendingDisplay, pendingPeg bool) Advisory {
	var adv Advisory
	declared := d.Knowledge.DebtorData
	if declared != nil && !pendingDisplay {
		unit := ""
		if d.Display.Unit != nil {
			unit = *d.Display.Unit
		}
		adv.NonstandardDisplay = d.Display.AmountDivisor != declared.AmountDivisor ||
			d.Display.DecimalPlaces != declared.DecimalPlaces || unit != declared.Unit
	}

	current := d.Exchange.Peg
	switch {
	case current == nil && (declared == nil || declared.Peg == nil || pendingPeg):
		adv.PegStatus = UsesNoPeg
	case current == nil:
		adv.PegStatus = IgnoresDeclaredPeg
	case declared != nil && declared.Peg != nil && isStandardPeg(*current, *declared.Peg, idx):
		adv.PegStatus = UsesStandardPeg
	default:
		adv.PegStatus = UsesNonstandardPeg
	}
	return adv
}

func isStandardPeg(current canonical.CurrencyPeg, declared canonical.Peg, idx *accounts.Index) bool {
	pegged, ok := idx.AccountURI(declared.DebtorIdentity.URI)
	return ok && current.Account.URI == pegged && current.ExchangeRate == declared.ExchangeRate
}

// ResolveConfigAccount saves the edited debtor name and deletion settings
// of an account, then deletes the action.
func (m *Manager) ResolveConfigAccount(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	p := a.ConfigAccount
	if p == nil {
		return Outcome{}, fmt.Errorf("resolve config: action %d is a %s", a.ActionID, a.Type)
	}
	if p.EditedDebtorName == "" {
		return Outcome{}, fault.New(fault.KindInvalidDocument, "resolve config", "empty debtor name")
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

	c := d.Config
	if p.EditedNegligibleAmount != c.NegligibleAmount ||
		p.EditedScheduledForDeletion != c.ScheduledForDeletion ||
		p.EditedAllowUnsafeDeletion != c.AllowUnsafeDeletion {
		config, err := patch(ctx, m, "update config", c.URI, configBody{
			Type:                 canonical.TypeAccountConfig,
			ScheduledForDeletion: p.EditedScheduledForDeletion,
			NegligibleAmount:     p.EditedNegligibleAmount,
			AllowUnsafeDeletion:  p.EditedAllowUnsafeDeletion,
			LatestUpdateID:       c.LatestUpdateID + 1,
		}, canonical.MapAccountConfig, canonical.AccountConfigURI)
		if err := m.save(ctx, config, err); err != nil {
			return Outcome{}, err
		}
	}

	if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
		return Outcome{}, err
	}
	return showAccount(a.AccountURI), nil
}

// ResolveUpdatePolicy saves the edited exchange policy of an account. A
// nonstandard peg is dropped unless the user chose to keep it, and a
// declared peg the user chose to ignore is removed.
func (m *Manager) ResolveUpdatePolicy(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	p := a.UpdatePolicy
	if p == nil {
		return Outcome{}, fmt.Errorf("resolve policy: action %d is a %s", a.ActionID, a.Type)
	}
	if p.EditedMinPrincipal > p.EditedMaxPrincipal {
		return Outcome{}, fault.New(fault.KindUnprocessableEntity, "resolve policy",
			"min principal exceeds max principal")
	}
	d, err := m.account(a.AccountURI)
	if err != nil {
		return Outcome{}, err
	}
	adv, err := m.Advisory(ctx, a.AccountURI)
	if err != nil {
		return Outcome{}, err
	}

	peg := d.Exchange.Peg
	switch {
	case p.EditedIgnoreDeclaredPeg && adv.PegStatus == UsesStandardPeg:
		peg = nil
	case adv.PegStatus == UsesNonstandardPeg && !p.EditedUseNonstandardPeg:
		peg = nil
	}

	exchange, err := patch(ctx, m, "update exchange", d.Exchange.URI, exchangeBody{
		Type:           canonical.TypeAccountExchange,
		Policy:         p.EditedPolicy,
		MinPrincipal:   p.EditedMinPrincipal,
		MaxPrincipal:   p.EditedMaxPrincipal,
		Peg:            peg,
		LatestUpdateID: d.Exchange.LatestUpdateID + 1,
	}, canonical.MapAccountExchange, canonical.AccountExchangeURI)
	if err := m.save(ctx, exchange, err); err != nil {
		return Outcome{}, err
	}

	if err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteAction(ctx, a.ActionID)
	}); err != nil {
		return Outcome{}, err
	}
	return showAccount(a.AccountURI), nil
}
