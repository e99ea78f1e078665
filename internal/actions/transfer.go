package actions

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
)

func errInvalidAmount(op string) error {
	return fault.New(fault.KindInvalidPaymentData, op, "invalid amount")
}

// CreateCreateTransferAction starts paying a scanned payment request.
// Malformed documents are reported as InvalidPaymentRequest.
func (m *Manager) CreateCreateTransferAction(ctx context.Context, paymentRequest []byte) (Outcome, error) {
	info, err := m.decoder.Decode(paymentRequest)
	if err != nil {
		return Outcome{}, err
	}
	return m.createTransferAction(ctx, info)
}

func (m *Manager) createTransferAction(ctx context.Context, info records.PaymentInfo) (Outcome, error) {
	a := records.Action{
		UserID:    m.userID,
		Type:      records.ActionCreateTransfer,
		CreatedAt: m.now(),
		CreateTransfer: &records.CreateTransfer{
			PaymentInfo:       info,
			RequestedAmount:   info.Amount,
			RequestedDeadline: info.Deadline,
			EditedAmount:      info.Amount,
			EditedDeadline:    info.Deadline,
		},
	}
	if accountURI, ok := m.index.AccountURI(debtorOf(info.RecipientURI)); ok {
		a.AccountURI = accountURI
	}
	stored, err := m.store.CreateAction(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	return showAction(stored), nil
}

// debtorOf returns the debtor identity part of an account identity URI
// ("swpt:1/2" belongs to "swpt:1").
func debtorOf(accountIdentityURI string) string {
	if i := strings.LastIndex(accountIdentityURI, "/"); i > 0 {
		return accountIdentityURI[:i]
	}
	return accountIdentityURI
}

// ResolveCreateTransfer sends the transfer. The creation request, with
// its idempotency UUID, is stored in the action before it is sent, so a
// retry after a lost response sends the very same request and the server
// creates the transfer at most once. While the request is pending the
// amount and deadline cannot be edited.
//
// 403 is reported as WrongPin, 409 as ConflictingUpdate and 422 as
// UnprocessableEntity. The server created nothing in these cases, so the
// request is dropped and the action kept: the next attempt sends the
// edited values under a new UUID.
func (m *Manager) ResolveCreateTransfer(ctx context.Context, a records.Action, pin string) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	p := a.CreateTransfer
	if p == nil {
		return Outcome{}, fmt.Errorf("resolve transfer: action %d is a %s", a.ActionID, a.Type)
	}
	if p.TransferURI != "" {
		return Outcome{Kind: OutcomeShowTransfer, TransferURI: p.TransferURI}, nil
	}

	if p.CreationRequest == nil {
		if p.EditedAmount <= 0 {
			return Outcome{}, errInvalidAmount("resolve transfer")
		}
		next := a.WithCreationRequest(records.TransferCreationRequest{
			TransferUUID: m.tokens.Generate(),
			RecipientURI: p.PaymentInfo.RecipientURI,
			Amount:       p.EditedAmount,
			NoteFormat:   noteFormat(p.PaymentInfo),
			Note:         note(p.PaymentInfo),
			Deadline:     p.EditedDeadline,
		})
		if err := m.replace(ctx, a, next); err != nil {
			return Outcome{}, err
		}
		a, p = next, next.CreateTransfer
	}
	req := p.CreationRequest

	w, err := m.wallet(ctx)
	if err != nil {
		return Outcome{}, err
	}
	resp, err := m.client.Post(ctx, w.Entrypoints.CreateTransfer.URI, transferCreationBody{
		Type:         "TransferCreationRequest",
		TransferUUID: req.TransferUUID,
		Recipient:    canonical.AccountIdentity{Type: "AccountIdentity", URI: req.RecipientURI},
		Amount:       req.Amount,
		NoteFormat:   req.NoteFormat,
		Note:         req.Note,
		Options: transferOptionsBody{
			Type:            "TransferOptions",
			MinInterestRate: minInterestRate,
			Deadline:        req.Deadline,
		},
		Pin: pin,
	})
	if err != nil {
		err = fault.FromHTTP("create transfer", err,
			http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity)
		switch fault.KindOf(err) {
		case fault.KindWrongPin, fault.KindConflictingUpdate, fault.KindUnprocessableEntity:
			if rerr := m.replace(ctx, a, a.WithoutCreationRequest()); rerr != nil {
				m.logger.Warn("dropping rejected transfer request failed", "action_id", a.ActionID, "error", rerr)
			}
		}
		return Outcome{}, err
	}
	t, err := canonical.FromResponse(resp, canonical.MapTransfer, canonical.TransferURI)
	if err != nil {
		return Outcome{}, err
	}

	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := m.putObjects(ctx, tx, t); err != nil {
			return err
		}
		return tx.DeleteAction(ctx, a.ActionID)
	})
	if err != nil {
		return Outcome{}, err
	}
	m.logger.Info("transfer created", "action_id", a.ActionID, "transfer_uri", t.URI, "transfer_uuid", req.TransferUUID)
	return Outcome{Kind: OutcomeShowTransfer, TransferURI: t.URI}, nil
}

// noteFormat and note carry the payee reference to the recipient.
func noteFormat(info records.PaymentInfo) string {
	if info.PayeeReference == "" {
		return ""
	}
	return "PAYREF0"
}

func note(info records.PaymentInfo) string {
	if info.PayeeReference == "" {
		return info.Description
	}
	return info.PayeeReference + "\n" + info.Description
}

// abortable reports whether a transfer has not succeeded and was not
// dismissed yet.
func abortable(t *canonical.Transfer) bool {
	return !t.Aborted && (t.Result == nil || t.Result.Error != nil)
}

// CreateAbortTransferAction starts dismissing, or cancelling, an
// unsuccessful transfer. A transfer that cannot be aborted is shown
// instead.
func (m *Manager) CreateAbortTransferAction(ctx context.Context, transferURI string) (Outcome, error) {
	t, err := store.Get[*canonical.Transfer](ctx, m.store, m.userID, transferURI)
	if err != nil {
		return Outcome{}, err
	}
	if !abortable(t) {
		return Outcome{Kind: OutcomeShowTransfer, TransferURI: transferURI}, nil
	}
	a, err := m.store.CreateAction(ctx, records.Action{
		UserID:        m.userID,
		Type:          records.ActionAbortTransfer,
		CreatedAt:     m.now(),
		AbortTransfer: &records.AbortTransfer{TransferURI: transferURI, Transfer: *t},
	})
	if err != nil {
		return Outcome{}, err
	}
	return showAction(a), nil
}

// ResolveAbortTransfer cancels a pending transfer on the server and marks
// the transfer as aborted locally. A transfer that turns out to have
// succeeded is left alone.
func (m *Manager) ResolveAbortTransfer(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	if a.AbortTransfer == nil {
		return Outcome{}, fmt.Errorf("resolve abort: action %d is a %s", a.ActionID, a.Type)
	}
	uri := a.AbortTransfer.TransferURI
	t, err := store.Get[*canonical.Transfer](ctx, m.store, m.userID, uri)
	if err != nil {
		return Outcome{}, err
	}

	if t.Result == nil {
		resp, err := m.client.Post(ctx, uri, cancelationBody{Type: "TransferCancelationRequest"})
		if err != nil {
			// 403: the transfer can no longer be cancelled.
			err = fault.FromHTTP("cancel transfer", err, http.StatusForbidden, http.StatusNotFound)
			if !fault.Is(err, fault.KindWrongPin) {
				return Outcome{}, err
			}
			if t, err = canonical.Fetch(ctx, m.client, uri, canonical.MapTransfer, canonical.TransferURI); err != nil {
				return Outcome{}, err
			}
		} else if t, err = canonical.FromResponse(resp, canonical.MapTransfer, canonical.TransferURI); err != nil {
			return Outcome{}, err
		}
	}

	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if t.Result != nil && t.Result.Error != nil {
			t.Aborted = true
		}
		if err := tx.PutObject(ctx, m.userID, t); err != nil {
			return err
		}
		return tx.DeleteAction(ctx, a.ActionID)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeShowTransfer, TransferURI: uri}, nil
}

// RetryTransfer starts a new CreateTransfer action with the parameters of
// a failed transfer, which is marked as aborted.
func (m *Manager) RetryTransfer(ctx context.Context, transferURI string) (Outcome, error) {
	t, err := store.Get[*canonical.Transfer](ctx, m.store, m.userID, transferURI)
	if err != nil {
		return Outcome{}, err
	}
	if t.Result == nil || t.Result.Error == nil {
		return Outcome{}, fault.New(fault.KindUnprocessableEntity, "retry transfer",
			transferURI+" has not failed")
	}

	info := records.PaymentInfo{
		RecipientURI: t.Recipient.URI,
		Amount:       t.Amount,
		Deadline:     t.Options.Deadline,
		Description:  t.Note,
	}
	if t.NoteFormat == "PAYREF0" {
		ref, desc, _ := strings.Cut(t.Note, "\n")
		info.PayeeReference, info.Description = ref, desc
	}

	if !t.Aborted {
		t.Aborted = true
		if err := m.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutObject(ctx, m.userID, t)
		}); err != nil {
			return Outcome{}, err
		}
	}
	return m.createTransferAction(ctx, info)
}
