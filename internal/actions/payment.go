package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/creditors/internal/payreq"
	"github.com/roach88/creditors/internal/records"
)

// CreatePaymentRequestAction starts a payment request to be paid into the
// given account. The request gets a fresh payee reference.
func (m *Manager) CreatePaymentRequestAction(ctx context.Context, accountURI, payeeName string) (Outcome, error) {
	if _, err := m.account(accountURI); err != nil {
		return Outcome{}, err
	}
	a, err := m.store.CreateAction(ctx, records.Action{
		UserID:     m.userID,
		Type:       records.ActionPaymentRequest,
		CreatedAt:  m.now(),
		AccountURI: accountURI,
		PaymentRequest: &records.PaymentRequest{
			PayeeReference: m.tokens.Generate(),
			PayeeName:      payeeName,
		},
	})
	if err != nil {
		return Outcome{}, err
	}
	return showAction(a), nil
}

// SealPaymentRequest fixes the content of a payment request. Sealing an
// already sealed request changes nothing.
func (m *Manager) SealPaymentRequest(ctx context.Context, a records.Action) (records.Action, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return records.Action{}, err
	}
	if a.PaymentRequest == nil {
		return records.Action{}, fmt.Errorf("seal: action %d is a %s", a.ActionID, a.Type)
	}
	if a.PaymentRequest.IsSealed() {
		return a, nil
	}
	if a.PaymentRequest.EditedAmount < 0 {
		return records.Action{}, errInvalidAmount("seal")
	}
	next := a.Sealed(m.now())
	if err := m.replace(ctx, a, next); err != nil {
		return records.Action{}, err
	}
	return next, nil
}

// PaymentRequestDocument is a shareable payment request.
type PaymentRequestDocument struct {
	Content []byte
	// Generic is set when the request asks for no specific amount.
	Generic bool
	// Invalid is set when the request content could not be encoded;
	// Content then holds payreq.InvalidPlaceholder.
	Invalid bool
}

// PaymentRequestDocument renders a sealed payment request. Content the
// encoder rejects yields a placeholder document rather than an error.
func (m *Manager) PaymentRequestDocument(ctx context.Context, a records.Action) (PaymentRequestDocument, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return PaymentRequestDocument{}, err
	}
	p := a.PaymentRequest
	if p == nil || !p.IsSealed() {
		return PaymentRequestDocument{}, fmt.Errorf("payment request document: action %d is not a sealed payment request", a.ActionID)
	}
	d, err := m.account(a.AccountURI)
	if err != nil {
		return PaymentRequestDocument{}, err
	}
	recipient := ""
	if d.Info.Identity != nil {
		recipient = d.Info.Identity.URI
	}

	content, err := m.encoder.Encode(records.PaymentInfo{
		RecipientURI:   recipient,
		PayeeReference: p.PayeeReference,
		PayeeName:      p.PayeeName,
		Amount:         p.EditedAmount,
		Deadline:       p.EditedDeadline,
		Description:    p.EditedNote,
	})
	if errors.Is(err, payreq.ErrInvalidData) {
		m.logger.Debug("payment request is invalid", "action_id", a.ActionID, "error", err)
		return PaymentRequestDocument{Content: payreq.InvalidPlaceholder, Generic: p.IsGeneric(), Invalid: true}, nil
	}
	if err != nil {
		return PaymentRequestDocument{}, err
	}
	return PaymentRequestDocument{Content: content, Generic: p.IsGeneric()}, nil
}
