package records

import "time"

// clone copies the action and its payload so that the copy can be changed
// without touching the original.
func (a Action) clone() Action {
	b := a
	if a.CreateAccount != nil {
		v := *a.CreateAccount
		if v.State != nil {
			s := *v.State
			v.State = &s
		}
		b.CreateAccount = &v
	}
	if a.AckAccountInfo != nil {
		v := *a.AckAccountInfo
		b.AckAccountInfo = &v
	}
	if a.ApproveDebtorName != nil {
		v := *a.ApproveDebtorName
		b.ApproveDebtorName = &v
	}
	if a.ApproveAmountDisplay != nil {
		v := *a.ApproveAmountDisplay
		b.ApproveAmountDisplay = &v
	}
	if a.ApprovePeg != nil {
		v := *a.ApprovePeg
		if v.State != nil {
			s := *v.State
			v.State = &s
		}
		b.ApprovePeg = &v
	}
	if a.ConfigAccount != nil {
		v := *a.ConfigAccount
		b.ConfigAccount = &v
	}
	if a.UpdatePolicy != nil {
		v := *a.UpdatePolicy
		b.UpdatePolicy = &v
	}
	if a.PaymentRequest != nil {
		v := *a.PaymentRequest
		b.PaymentRequest = &v
	}
	if a.CreateTransfer != nil {
		v := *a.CreateTransfer
		if v.CreationRequest != nil {
			r := *v.CreationRequest
			v.CreationRequest = &r
		}
		b.CreateTransfer = &v
	}
	if a.AbortTransfer != nil {
		v := *a.AbortTransfer
		b.AbortTransfer = &v
	}
	return b
}

// Clone returns a deep copy of the action payload.
func (a Action) Clone() Action {
	return a.clone()
}

// creationState returns the account creation checkpoint of the copy, if
// the action has one.
func (a *Action) creationState() *AccountCreationState {
	switch {
	case a.CreateAccount != nil:
		return a.CreateAccount.State
	case a.ApprovePeg != nil:
		return a.ApprovePeg.State
	}
	return nil
}

// WithCreationState returns a version carrying the given account creation
// checkpoint.
func (a Action) WithCreationState(s AccountCreationState) Action {
	b := a.clone()
	switch {
	case b.CreateAccount != nil:
		b.CreateAccount.State = &s
	case b.ApprovePeg != nil:
		b.ApprovePeg.State = &s
	}
	return b
}

// WithEditedDebtorName returns a version with the user's debtor name edit.
func (a Action) WithEditedDebtorName(name string) Action {
	b := a.clone()
	if s := b.creationState(); s != nil {
		s.EditedDebtorName = name
	}
	if b.ApproveDebtorName != nil {
		b.ApproveDebtorName.EditedDebtorName = name
	}
	if b.ConfigAccount != nil {
		b.ConfigAccount.EditedDebtorName = name
	}
	return b
}

// WithEditedNegligibleAmount returns a version with the user's negligible
// amount edit.
func (a Action) WithEditedNegligibleAmount(v float64) Action {
	b := a.clone()
	if s := b.creationState(); s != nil {
		s.EditedNegligibleAmount = v
	}
	if b.ConfigAccount != nil {
		b.ConfigAccount.EditedNegligibleAmount = v
	}
	return b
}

// WithConfirmed marks the creation checkpoint as confirmed by the user.
func (a Action) WithConfirmed() Action {
	b := a.clone()
	if s := b.creationState(); s != nil {
		s.Confirmed = true
	}
	return b
}

// WithEditedDeletion returns a version with the user's deletion settings.
func (a Action) WithEditedDeletion(scheduled, allowUnsafe bool) Action {
	b := a.clone()
	if b.ConfigAccount != nil {
		b.ConfigAccount.EditedScheduledForDeletion = scheduled
		b.ConfigAccount.EditedAllowUnsafeDeletion = allowUnsafe
	}
	return b
}

// WithEditedPolicy returns a version with the user's exchange policy edit.
func (a Action) WithEditedPolicy(policy *string, minPrincipal, maxPrincipal int64) Action {
	b := a.clone()
	if b.UpdatePolicy != nil {
		b.UpdatePolicy.EditedPolicy = policy
		b.UpdatePolicy.EditedMinPrincipal = minPrincipal
		b.UpdatePolicy.EditedMaxPrincipal = maxPrincipal
	}
	return b
}

// WithEditedPegUsage returns a version with the user's peg choices.
func (a Action) WithEditedPegUsage(useNonstandard, ignoreDeclared bool) Action {
	b := a.clone()
	if b.UpdatePolicy != nil {
		b.UpdatePolicy.EditedUseNonstandardPeg = useNonstandard
		b.UpdatePolicy.EditedIgnoreDeclaredPeg = ignoreDeclared
	}
	return b
}

// WithEditedApprove returns a version recording the user's approve/reject
// choice.
func (a Action) WithEditedApprove(approve bool) Action {
	b := a.clone()
	if b.ApproveAmountDisplay != nil {
		b.ApproveAmountDisplay.EditedApprove = &approve
	}
	if b.ApprovePeg != nil {
		b.ApprovePeg.EditedApprove = &approve
	}
	return b
}

// WithIgnoreCoinMismatch returns a version recording that the user
// overrides a coin mismatch.
func (a Action) WithIgnoreCoinMismatch(ignore bool) Action {
	b := a.clone()
	if b.ApprovePeg != nil {
		b.ApprovePeg.IgnoreCoinMismatch = ignore
	}
	return b
}

// WithEditedAmount returns a version with the user's amount edit. A sealed
// payment request, or a transfer whose creation request is pending, is
// returned unchanged.
func (a Action) WithEditedAmount(amount int64) Action {
	b := a.clone()
	if b.PaymentRequest != nil && !b.PaymentRequest.IsSealed() {
		b.PaymentRequest.EditedAmount = amount
	}
	if b.CreateTransfer != nil && b.CreateTransfer.CreationRequest == nil {
		b.CreateTransfer.EditedAmount = amount
	}
	return b
}

// WithEditedDeadline returns a version with the user's deadline edit.
func (a Action) WithEditedDeadline(deadline *time.Time) Action {
	b := a.clone()
	if b.PaymentRequest != nil && !b.PaymentRequest.IsSealed() {
		b.PaymentRequest.EditedDeadline = deadline
	}
	if b.CreateTransfer != nil && b.CreateTransfer.CreationRequest == nil {
		b.CreateTransfer.EditedDeadline = deadline
	}
	return b
}

// WithEditedNote returns a version with the user's payment request note.
func (a Action) WithEditedNote(note string) Action {
	b := a.clone()
	if b.PaymentRequest != nil && !b.PaymentRequest.IsSealed() {
		b.PaymentRequest.EditedNote = note
	}
	return b
}

// Sealed returns a sealed version of a payment request. Sealing is one-way:
// an already sealed request keeps its original timestamp.
func (a Action) Sealed(at time.Time) Action {
	b := a.clone()
	if b.PaymentRequest != nil && !b.PaymentRequest.IsSealed() {
		b.PaymentRequest.SealedAt = &at
	}
	return b
}

// WithCreationRequest returns a version carrying the transfer creation
// request about to be sent.
func (a Action) WithCreationRequest(r TransferCreationRequest) Action {
	b := a.clone()
	if b.CreateTransfer != nil {
		b.CreateTransfer.CreationRequest = &r
	}
	return b
}

// WithoutCreationRequest returns a version with no pending creation
// request. The next attempt builds a new request, with a new UUID, from the
// edited values.
func (a Action) WithoutCreationRequest() Action {
	b := a.clone()
	if b.CreateTransfer != nil {
		b.CreateTransfer.CreationRequest = nil
	}
	return b
}

// WithTransferURI returns a version recording the created transfer.
func (a Action) WithTransferURI(uri string) Action {
	b := a.clone()
	if b.CreateTransfer != nil {
		b.CreateTransfer.TransferURI = uri
	}
	return b
}
