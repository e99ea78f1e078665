package actions

import (
	"context"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
)

// View is an action together with the current local data it is about.
type View struct {
	Action   records.Action
	Account  *accounts.FullData
	Transfer *canonical.Transfer
	Advisory *Advisory
}

// ShowAction loads an action and the data it displays. When the action no
// longer makes sense, because its account or transfer is gone or the
// declared data it asks about changed, it is deleted and
// RecordDoesNotExist is returned.
func (m *Manager) ShowAction(ctx context.Context, actionID int64) (View, error) {
	a, err := m.current(ctx, records.Action{ActionID: actionID})
	if err != nil {
		return View{}, err
	}
	v := View{Action: a}

	switch a.Type {
	case records.ActionCreateAccount, records.ActionPaymentRequest:
		if a.AccountURI != "" {
			v.Account, _ = m.index.FullData(a.AccountURI)
		}
		if s := a.CreateAccount; s != nil && s.State != nil && s.State.Status != records.InitNotStarted {
			d, err := m.account(s.State.AccountURI)
			if fault.Is(err, fault.KindRecordDoesNotExist) {
				return View{}, m.dropAction(ctx, a, "account is gone")
			}
			if err != nil {
				return View{}, err
			}
			v.Account = d
		}
		return v, nil

	case records.ActionCreateTransfer:
		if a.AccountURI != "" {
			v.Account, _ = m.index.FullData(a.AccountURI)
		}
		if uri := a.CreateTransfer.TransferURI; uri != "" {
			v.Transfer, _ = store.Get[*canonical.Transfer](ctx, m.store, m.userID, uri)
		}
		return v, nil

	case records.ActionAbortTransfer:
		t, err := store.Get[*canonical.Transfer](ctx, m.store, m.userID, a.AbortTransfer.TransferURI)
		if fault.Is(err, fault.KindRecordDoesNotExist) {
			return View{}, m.dropAction(ctx, a, "transfer is gone")
		}
		if err != nil {
			return View{}, err
		}
		if !abortable(t) {
			return View{}, m.dropAction(ctx, a, "transfer can no longer be aborted")
		}
		v.Transfer = t
		return v, nil
	}

	// Per-account actions.
	d, err := m.account(a.AccountURI)
	if fault.Is(err, fault.KindRecordDoesNotExist) {
		return View{}, m.dropAction(ctx, a, "account is gone")
	}
	if err != nil {
		return View{}, err
	}
	v.Account = d

	declared := d.Knowledge.DebtorData
	switch a.Type {
	case records.ActionApproveDebtorName:
		if declared == nil || declared.DebtorName != a.ApproveDebtorName.DebtorName {
			return View{}, m.dropAction(ctx, a, "declared debtor name changed")
		}
	case records.ActionApproveAmountDisplay:
		p := a.ApproveAmountDisplay
		if declared == nil || declared.AmountDivisor != p.AmountDivisor ||
			declared.DecimalPlaces != p.DecimalPlaces || declared.Unit != p.Unit {
			return View{}, m.dropAction(ctx, a, "declared amount display changed")
		}
	case records.ActionApprovePeg:
		if declared == nil || declared.Peg == nil || !samePeg(*declared.Peg, a.ApprovePeg.Peg) {
			return View{}, m.dropAction(ctx, a, "declared peg changed")
		}
	case records.ActionConfigAccount, records.ActionUpdatePolicy:
		adv, err := m.Advisory(ctx, a.AccountURI)
		if err != nil {
			return View{}, err
		}
		v.Advisory = &adv
	}
	return v, nil
}

func samePeg(a, b canonical.Peg) bool {
	return a.ExchangeRate == b.ExchangeRate &&
		a.DebtorIdentity.URI == b.DebtorIdentity.URI &&
		a.LatestDebtorInfo.URI == b.LatestDebtorInfo.URI &&
		a.Display == b.Display
}
