package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentRequest() Action {
	return Action{
		ActionID:  7,
		UserID:    1,
		Type:      ActionPaymentRequest,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PaymentRequest: &PaymentRequest{
			PayeeReference: "ref-1",
			PayeeName:      "Alice",
			EditedAmount:   500,
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, paymentRequest().Validate())

	a := paymentRequest()
	a.ConfigAccount = &ConfigAccount{}
	assert.Error(t, a.Validate(), "two payloads")

	a = paymentRequest()
	a.PaymentRequest = nil
	assert.Error(t, a.Validate(), "missing payload")

	a = Action{Type: ActionConfigAccount, ConfigAccount: &ConfigAccount{}}
	assert.Error(t, a.Validate(), "per-account action without account")

	a.AccountURI = "https://example.com/accounts/1/"
	assert.NoError(t, a.Validate())

	assert.Error(t, Action{Type: "Bogus"}.Validate())
}

func TestPerAccount(t *testing.T) {
	assert.True(t, ActionConfigAccount.PerAccount())
	assert.True(t, ActionUpdatePolicy.PerAccount())
	assert.True(t, ActionApprovePeg.PerAccount())
	assert.False(t, ActionCreateAccount.PerAccount())
	assert.False(t, ActionCreateTransfer.PerAccount())
}

func TestEditsDoNotMutateReceiver(t *testing.T) {
	orig := paymentRequest()
	edited := orig.WithEditedAmount(900).WithEditedNote("rent")

	assert.Equal(t, int64(500), orig.PaymentRequest.EditedAmount)
	assert.Empty(t, orig.PaymentRequest.EditedNote)
	assert.Equal(t, int64(900), edited.PaymentRequest.EditedAmount)
	assert.Equal(t, "rent", edited.PaymentRequest.EditedNote)
}

func TestSealIsOneWay(t *testing.T) {
	first := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	sealed := paymentRequest().Sealed(first)
	require.True(t, sealed.PaymentRequest.IsSealed())

	again := sealed.Sealed(later).WithEditedAmount(1)
	assert.Equal(t, first, *again.PaymentRequest.SealedAt)
	assert.Equal(t, int64(500), again.PaymentRequest.EditedAmount)
}

func TestTransferEditsWaitForPendingRequest(t *testing.T) {
	a := Action{
		Type:           ActionCreateTransfer,
		CreateTransfer: &CreateTransfer{EditedAmount: 250},
	}
	pending := a.WithCreationRequest(TransferCreationRequest{TransferUUID: "u1", Amount: 250})

	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ignored := pending.WithEditedAmount(100).WithEditedDeadline(&deadline)
	assert.Equal(t, int64(250), ignored.CreateTransfer.EditedAmount)
	assert.Nil(t, ignored.CreateTransfer.EditedDeadline)

	cleared := pending.WithoutCreationRequest()
	assert.NotNil(t, pending.CreateTransfer.CreationRequest)
	assert.Nil(t, cleared.CreateTransfer.CreationRequest)
	assert.Equal(t, int64(100), cleared.WithEditedAmount(100).CreateTransfer.EditedAmount)
}

func TestCreationStateEdits(t *testing.T) {
	a := Action{
		Type: ActionCreateAccount,
		CreateAccount: &CreateAccount{
			DebtorIdentityURI: "swpt:1",
			State:             &AccountCreationState{Status: InitServerSideCreated},
		},
	}
	b := a.WithEditedDebtorName("Bank").WithEditedNegligibleAmount(0.5).WithConfirmed()

	assert.Empty(t, a.CreateAccount.State.EditedDebtorName)
	assert.False(t, a.CreateAccount.State.Confirmed)
	assert.Equal(t, "Bank", b.CreateAccount.State.EditedDebtorName)
	assert.Equal(t, 0.5, b.CreateAccount.State.EditedNegligibleAmount)
	assert.True(t, b.CreateAccount.State.Confirmed)
}

func TestMarshalCanonical_SortsKeysAndKeepsNumbers(t *testing.T) {
	v := map[string]any{
		"b":   1,
		"a":   "<x>",
		"aa":  nil,
		"num": 0.25,
	}
	got, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","aa":null,"b":1,"num":0.25}`, string(got))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b\\u2028")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\\\\u2028\"", string(got))
}

func TestDigest(t *testing.T) {
	a := paymentRequest()
	d1, err := Digest(a)
	require.NoError(t, err)
	d2, err := Digest(a.Clone())
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	d3, err := Digest(a.WithEditedAmount(501))
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestUUIDGenerator(t *testing.T) {
	g := UUIDGenerator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
