// Package records defines the durable local records of the wallet client:
// the wallet record with its log stream cursor, pending user actions,
// scheduled tasks and fetched documents.
//
// Records are values. Edits go through the With* helpers, which return a
// new version and never mutate the receiver; the store replaces a stored
// record only when it still matches the version the edit started from.
package records

import (
	"fmt"
	"time"

	"github.com/roach88/creditors/internal/canonical"
)

// ActionType discriminates action records.
type ActionType string

const (
	ActionCreateAccount        ActionType = "CreateAccount"
	ActionAckAccountInfo       ActionType = "AckAccountInfo"
	ActionApproveDebtorName    ActionType = "ApproveDebtorName"
	ActionApproveAmountDisplay ActionType = "ApproveAmountDisplay"
	ActionApprovePeg           ActionType = "ApprovePeg"
	ActionConfigAccount        ActionType = "ConfigAccount"
	ActionUpdatePolicy         ActionType = "UpdatePolicy"
	ActionPaymentRequest       ActionType = "PaymentRequest"
	ActionCreateTransfer       ActionType = "CreateTransfer"
	ActionAbortTransfer        ActionType = "AbortTransfer"
)

// PerAccount reports whether at most one action of this type may exist per
// account.
func (t ActionType) PerAccount() bool {
	switch t {
	case ActionAckAccountInfo, ActionApproveDebtorName, ActionApproveAmountDisplay,
		ActionApprovePeg, ActionConfigAccount, ActionUpdatePolicy:
		return true
	}
	return false
}

// Action is a pending user operation. Exactly one payload, matching Type,
// is set.
type Action struct {
	ActionID   int64      `json:"actionId"`
	UserID     int64      `json:"userId"`
	Type       ActionType `json:"actionType"`
	CreatedAt  time.Time  `json:"createdAt"`
	AccountURI string     `json:"accountUri,omitempty"`

	CreateAccount        *CreateAccount        `json:"createAccount,omitempty"`
	AckAccountInfo       *AckAccountInfo       `json:"ackAccountInfo,omitempty"`
	ApproveDebtorName    *ApproveDebtorName    `json:"approveDebtorName,omitempty"`
	ApproveAmountDisplay *ApproveAmountDisplay `json:"approveAmountDisplay,omitempty"`
	ApprovePeg           *ApprovePeg           `json:"approvePeg,omitempty"`
	ConfigAccount        *ConfigAccount        `json:"configAccount,omitempty"`
	UpdatePolicy         *UpdatePolicy         `json:"updatePolicy,omitempty"`
	PaymentRequest       *PaymentRequest       `json:"paymentRequest,omitempty"`
	CreateTransfer       *CreateTransfer       `json:"createTransfer,omitempty"`
	AbortTransfer        *AbortTransfer        `json:"abortTransfer,omitempty"`
}

// Validate checks that exactly the payload matching Type is present and
// that per-account actions name their account.
func (a Action) Validate() error {
	set := map[ActionType]bool{
		ActionCreateAccount:        a.CreateAccount != nil,
		ActionAckAccountInfo:       a.AckAccountInfo != nil,
		ActionApproveDebtorName:    a.ApproveDebtorName != nil,
		ActionApproveAmountDisplay: a.ApproveAmountDisplay != nil,
		ActionApprovePeg:           a.ApprovePeg != nil,
		ActionConfigAccount:        a.ConfigAccount != nil,
		ActionUpdatePolicy:         a.UpdatePolicy != nil,
		ActionPaymentRequest:       a.PaymentRequest != nil,
		ActionCreateTransfer:       a.CreateTransfer != nil,
		ActionAbortTransfer:        a.AbortTransfer != nil,
	}
	if _, known := set[a.Type]; !known {
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	for t, present := range set {
		if present != (t == a.Type) {
			return fmt.Errorf("action %s: unexpected payload presence for %s", a.Type, t)
		}
	}
	if a.Type.PerAccount() && a.AccountURI == "" {
		return fmt.Errorf("action %s: missing account uri", a.Type)
	}
	return nil
}

// DebtorDataSource records where the debtor data of a new account came from.
type DebtorDataSource string

const (
	// SourceKnowledge means the account knowledge already had a confirmed
	// debtor name.
	SourceKnowledge DebtorDataSource = "knowledge"
	// SourceInfo means the data came from the debtor info document the
	// server reports for the account.
	SourceInfo DebtorDataSource = "info"
	// SourceURI means the data came from the document the action was
	// created with.
	SourceURI DebtorDataSource = "uri"
)

// InitializationStatus tracks account initialization across restarts.
type InitializationStatus string

const (
	InitNotStarted        InitializationStatus = "NotStarted"
	InitServerSideCreated InitializationStatus = "ServerSideCreated"
	InitLocallyFinalized  InitializationStatus = "LocallyFinalized"
)

// AccountCreationState is the resumption checkpoint of an account being
// created (CreateAccount) or pegged to (ApprovePeg).
type AccountCreationState struct {
	AccountURI             string               `json:"accountUri"`
	DebtorData             canonical.DebtorData `json:"debtorData"`
	DebtorDataSource       DebtorDataSource     `json:"debtorDataSource"`
	Status                 InitializationStatus `json:"status"`
	Confirmed              bool                 `json:"confirmed"`
	EditedDebtorName       string               `json:"editedDebtorName"`
	EditedNegligibleAmount float64              `json:"editedNegligibleAmount"`
	TinyNegligibleAmount   float64              `json:"tinyNegligibleAmount"`
}

// CreateAccount adds an account with a debtor identified by a coin URI.
type CreateAccount struct {
	DebtorIdentityURI string                `json:"debtorIdentityUri"`
	DebtorInfoURI     string                `json:"debtorInfoUri,omitempty"`
	State             *AccountCreationState `json:"accountCreationState,omitempty"`
}

// InfoChanges lists what changed in an AccountInfo since it was last
// acknowledged.
type InfoChanges struct {
	InterestRate bool `json:"interestRate"`
	Info         bool `json:"info"`
	ConfigError  bool `json:"configError"`
}

// Any reports whether anything changed.
func (c InfoChanges) Any() bool {
	return c.InterestRate || c.Info || c.ConfigError
}

// AckAccountInfo asks the user to acknowledge a change the server reported
// for an account.
type AckAccountInfo struct {
	InfoLatestUpdateID    int64                      `json:"infoLatestUpdateId"`
	InterestRate          float64                    `json:"interestRate"`
	InterestRateChangedAt time.Time                  `json:"interestRateChangedAt"`
	PreviousInterestRate  *float64                   `json:"previousInterestRate,omitempty"`
	Identity              *canonical.AccountIdentity `json:"identity,omitempty"`
	DebtorInfo            *canonical.DebtorInfo      `json:"debtorInfo,omitempty"`
	ConfigError           *string                    `json:"configError,omitempty"`
	Changes               InfoChanges                `json:"changes"`
}

// ApproveDebtorName asks the user to accept the debtor's declared name.
type ApproveDebtorName struct {
	DebtorName       string `json:"debtorName"`
	EditedDebtorName string `json:"editedDebtorName"`
}

// ApproveAmountDisplay asks the user to accept a new amount display.
type ApproveAmountDisplay struct {
	AmountDivisor float64 `json:"amountDivisor"`
	DecimalPlaces int64   `json:"decimalPlaces"`
	Unit          string  `json:"unit"`
	EditedApprove *bool   `json:"editedApprove,omitempty"`
}

// ApprovePeg asks the user to accept a currency peg declared by the debtor.
type ApprovePeg struct {
	Peg                canonical.Peg         `json:"peg"`
	PeggedDebtorURI    string                `json:"peggedDebtorUri"`
	State              *AccountCreationState `json:"accountCreationState,omitempty"`
	CoinMismatch       bool                  `json:"coinMismatch"`
	IgnoreCoinMismatch bool                  `json:"ignoreCoinMismatch"`
	EditedApprove      *bool                 `json:"editedApprove,omitempty"`
}

// ConfigAccount edits an account's display name and deletion settings.
type ConfigAccount struct {
	EditedDebtorName           string  `json:"editedDebtorName"`
	EditedNegligibleAmount     float64 `json:"editedNegligibleAmount"`
	EditedScheduledForDeletion bool    `json:"editedScheduledForDeletion"`
	EditedAllowUnsafeDeletion  bool    `json:"editedAllowUnsafeDeletion"`
}

// UpdatePolicy edits an account's exchange policy and peg usage.
type UpdatePolicy struct {
	EditedPolicy            *string `json:"editedPolicy,omitempty"`
	EditedMinPrincipal      int64   `json:"editedMinPrincipal"`
	EditedMaxPrincipal      int64   `json:"editedMaxPrincipal"`
	EditedUseNonstandardPeg bool    `json:"editedUseNonstandardPeg"`
	EditedIgnoreDeclaredPeg bool    `json:"editedIgnoreDeclaredPeg"`
}

// PaymentRequest is a request for payment the user prepares and shares.
// Once sealed its content is fixed.
type PaymentRequest struct {
	PayeeReference string     `json:"payeeReference"`
	PayeeName      string     `json:"payeeName"`
	EditedAmount   int64      `json:"editedAmount"`
	EditedDeadline *time.Time `json:"editedDeadline,omitempty"`
	EditedNote     string     `json:"editedNote"`
	SealedAt       *time.Time `json:"sealedAt,omitempty"`
}

// IsSealed reports whether the request can no longer be edited.
func (p *PaymentRequest) IsSealed() bool {
	return p.SealedAt != nil
}

// IsGeneric reports whether the request asks for no specific amount.
func (p *PaymentRequest) IsGeneric() bool {
	return p.EditedAmount == 0
}

// PaymentInfo is the content of a payment request being paid.
type PaymentInfo struct {
	RecipientURI   string     `json:"recipientUri"`
	PayeeReference string     `json:"payeeReference"`
	PayeeName      string     `json:"payeeName"`
	Amount         int64      `json:"amount"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Description    string     `json:"description"`
}

// TransferCreationRequest is the exact request sent to create a transfer.
// It is persisted before sending so retries reuse TransferUUID.
type TransferCreationRequest struct {
	TransferUUID string     `json:"transferUuid"`
	RecipientURI string     `json:"recipientUri"`
	Amount       int64      `json:"amount"`
	NoteFormat   string     `json:"noteFormat"`
	Note         string     `json:"note"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// CreateTransfer prepares and sends an outgoing transfer.
type CreateTransfer struct {
	PaymentInfo       PaymentInfo              `json:"paymentInfo"`
	RequestedAmount   int64                    `json:"requestedAmount"`
	RequestedDeadline *time.Time               `json:"requestedDeadline,omitempty"`
	EditedAmount      int64                    `json:"editedAmount"`
	EditedDeadline    *time.Time               `json:"editedDeadline,omitempty"`
	CreationRequest   *TransferCreationRequest `json:"creationRequest,omitempty"`
	TransferURI       string                   `json:"transferUri,omitempty"`
}

// AbortTransfer dismisses or cancels an unsuccessful transfer.
type AbortTransfer struct {
	TransferURI string             `json:"transferUri"`
	Transfer    canonical.Transfer `json:"transfer"`
}
