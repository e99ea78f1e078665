package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

func TestEnsureAccountAction_ReturnsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	first, inserted, err := s.EnsureAccountAction(ctx, createTestConfigAction(userID, testAccountURI))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, first.ActionID)

	other := createTestConfigAction(userID, testAccountURI)
	other.ConfigAccount.EditedDebtorName = "Other"
	second, inserted, err := s.EnsureAccountAction(ctx, other)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ActionID, second.ActionID)
	assert.Equal(t, "Demo", second.ConfigAccount.EditedDebtorName)
}

func TestEnsureAccountAction_RejectsNonPerAccount(t *testing.T) {
	s := createTestStore(t)
	userID := createTestWallet(t, s)

	_, _, err := s.EnsureAccountAction(context.Background(), records.Action{
		UserID:         userID,
		Type:           records.ActionPaymentRequest,
		PaymentRequest: &records.PaymentRequest{},
	})
	assert.Error(t, err)
}

func TestCreateAction_PerAccountConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	_, err := s.CreateAction(ctx, createTestConfigAction(userID, testAccountURI))
	require.NoError(t, err)

	_, err = s.CreateAction(ctx, createTestConfigAction(userID, testAccountURI))
	assert.True(t, fault.Is(err, fault.KindConflictingUpdate))
}

func TestCreateAction_InvalidPayload(t *testing.T) {
	s := createTestStore(t)
	userID := createTestWallet(t, s)

	a := createTestConfigAction(userID, testAccountURI)
	a.UpdatePolicy = &records.UpdatePolicy{}
	_, err := s.CreateAction(context.Background(), a)
	assert.Error(t, err)
}

func TestReplaceAction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	created, err := s.CreateAction(ctx, createTestConfigAction(userID, testAccountURI))
	require.NoError(t, err)
	stored, err := s.GetAction(ctx, created.ActionID)
	require.NoError(t, err)

	next := stored.WithEditedDebtorName("Renamed")
	require.NoError(t, s.ReplaceAction(ctx, stored, next))

	got, err := s.GetAction(ctx, created.ActionID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.ConfigAccount.EditedDebtorName)

	t.Run("stale previous value", func(t *testing.T) {
		// stored no longer matches the database.
		err := s.ReplaceAction(ctx, stored, stored.WithEditedDebtorName("Lost"))
		assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))

		got, err := s.GetAction(ctx, created.ActionID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.ConfigAccount.EditedDebtorName)
	})

	t.Run("deleted action", func(t *testing.T) {
		require.NoError(t, s.DeleteAction(ctx, got.ActionID))
		err := s.ReplaceAction(ctx, got, got.WithEditedDebtorName("Gone"))
		assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))
	})

	t.Run("identity change", func(t *testing.T) {
		next := got
		next.AccountURI = "https://demo.example.com/creditors/1/accounts/9/"
		assert.Error(t, s.ReplaceAction(ctx, got, next))
	})
}

func TestListActions_CreationOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		a := records.Action{
			UserID:         userID,
			Type:           records.ActionPaymentRequest,
			CreatedAt:      base.Add(offset),
			PaymentRequest: &records.PaymentRequest{PayeeReference: string(rune('a' + i))},
		}
		_, err := s.CreateAction(ctx, a)
		require.NoError(t, err)
	}

	actions, err := s.ListActions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, "b", actions[0].PaymentRequest.PayeeReference)
	assert.Equal(t, "c", actions[1].PaymentRequest.PayeeReference)
	assert.Equal(t, "a", actions[2].PaymentRequest.PayeeReference)
}

func TestReplaceAccountAction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	first, err := s.CreateAction(ctx, createTestConfigAction(userID, testAccountURI))
	require.NoError(t, err)

	var second records.Action
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) (err error) {
		second, err = tx.ReplaceAccountAction(ctx, createTestConfigAction(userID, testAccountURI))
		return err
	}))
	assert.NotEqual(t, first.ActionID, second.ActionID)

	_, err = s.GetAction(ctx, first.ActionID)
	assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))
}
