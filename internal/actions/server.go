package actions

import (
	"context"
	"net/http"
	"time"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/store"
)

// Request bodies. Every update carries latestUpdateId one past the version
// the change was based on; the server rejects it with 409 when the object
// moved on in the meantime.

type debtorIdentityBody struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

type displayBody struct {
	Type           string  `json:"type"`
	DebtorName     *string `json:"debtorName,omitempty"`
	AmountDivisor  float64 `json:"amountDivisor"`
	DecimalPlaces  int64   `json:"decimalPlaces"`
	Unit           *string `json:"unit,omitempty"`
	KnownDebtor    bool    `json:"knownDebtor"`
	LatestUpdateID int64   `json:"latestUpdateId"`
}

type configBody struct {
	Type                 string  `json:"type"`
	ScheduledForDeletion bool    `json:"scheduledForDeletion"`
	NegligibleAmount     float64 `json:"negligibleAmount"`
	AllowUnsafeDeletion  bool    `json:"allowUnsafeDeletion"`
	LatestUpdateID       int64   `json:"latestUpdateId"`
}

type exchangeBody struct {
	Type           string                 `json:"type"`
	Policy         *string                `json:"policy,omitempty"`
	MinPrincipal   int64                  `json:"minPrincipal"`
	MaxPrincipal   int64                  `json:"maxPrincipal"`
	Peg            *canonical.CurrencyPeg `json:"peg,omitempty"`
	LatestUpdateID int64                  `json:"latestUpdateId"`
}

type knowledgeBody struct {
	Type                  string                     `json:"type"`
	InterestRate          *float64                   `json:"interestRate,omitempty"`
	InterestRateChangedAt *time.Time                 `json:"interestRateChangedAt,omitempty"`
	Identity              *canonical.AccountIdentity `json:"identity,omitempty"`
	DebtorInfo            *canonical.DebtorInfo      `json:"debtorInfo,omitempty"`
	ConfigError           *string                    `json:"configError,omitempty"`
	DebtorData            *canonical.DebtorData      `json:"debtorData,omitempty"`
	LatestUpdateID        int64                      `json:"latestUpdateId"`
}

type transferOptionsBody struct {
	Type            string     `json:"type"`
	MinInterestRate float64    `json:"minInterestRate"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	LockedAmount    int64      `json:"lockedAmount"`
}

type transferCreationBody struct {
	Type         string                    `json:"type"`
	TransferUUID string                    `json:"transferUuid"`
	Recipient    canonical.AccountIdentity `json:"recipient"`
	Amount       int64                     `json:"amount"`
	NoteFormat   string                    `json:"noteFormat"`
	Note         string                    `json:"note"`
	Options      transferOptionsBody       `json:"options"`
	Pin          string                    `json:"pin,omitempty"`
}

type cancelationBody struct {
	Type string `json:"type"`
}

type pinBody struct {
	Type           string `json:"type"`
	Status         string `json:"status"`
	LatestUpdateID int64  `json:"latestUpdateId"`
	Pin            string `json:"pin,omitempty"`
	NewPin         string `json:"newPin,omitempty"`
}

// minInterestRate accepts any interest rate the debtor may apply.
const minInterestRate = -100

// patch sends body to uri, maps the response with m and stores the
// result. 409 and 422 are reported as conflict kinds.
func patch[T any](ctx context.Context, m *Manager, op, uri string, body any, mapper canonical.Mapper[T], self func(*T) *string) (*T, error) {
	resp, err := m.client.Patch(ctx, uri, body)
	if err != nil {
		return nil, fault.FromHTTP(op, err, http.StatusConflict, http.StatusUnprocessableEntity, http.StatusNotFound)
	}
	return canonical.FromResponse(resp, mapper, self)
}

// putObjects stores objects returned by the server in one transaction,
// skipping any that the log stream has already replaced with a newer
// version.
func (m *Manager) putObjects(ctx context.Context, tx *store.Tx, objects ...canonical.Object) error {
	for _, obj := range objects {
		stored, ok, err := tx.ObjectUpdateID(ctx, m.userID, obj.ObjectURI())
		if err != nil {
			return err
		}
		if ok && stored > obj.UpdateID() {
			continue
		}
		if err := tx.PutObject(ctx, m.userID, obj); err != nil {
			return err
		}
	}
	return nil
}

// save stores the object a patch returned, or passes the patch error
// through unchanged.
func (m *Manager) save(ctx context.Context, obj canonical.Object, err error) error {
	if err != nil {
		return err
	}
	return m.store.WithTx(ctx, func(tx *store.Tx) error {
		return m.putObjects(ctx, tx, obj)
	})
}
