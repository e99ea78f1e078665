package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

func TestCreateWallet_InsertOrSelect(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	entrypoints := canonical.Wallet{
		URI: testWalletURI,
		Log: canonical.PaginatedStream{Forthcoming: "https://demo.example.com/creditors/1/log?prev=7"},
	}

	var first, second records.Wallet
	var inserted1, inserted2 bool
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) (err error) {
		first, inserted1, err = tx.CreateWallet(ctx, entrypoints)
		return err
	}))
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) (err error) {
		second, inserted2, err = tx.CreateWallet(ctx, entrypoints)
		return err
	}))

	assert.True(t, inserted1)
	assert.False(t, inserted2)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, "https://demo.example.com/creditors/1/log?prev=7", first.LogStream.ForthcomingURI)
	assert.Equal(t, int64(0), first.LogStream.LatestEntryID)
	assert.False(t, first.LogStream.LoadedTransfers)

	wallets, err := s.ListWallets(ctx)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestGetWallet_Missing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetWallet(context.Background(), 42)
	assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))
}

func TestUpdateLogStream(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	ls := records.LogStream{
		LatestEntryID:   12,
		ForthcomingURI:  "https://demo.example.com/creditors/1/log?prev=12",
		IsBroken:        true,
		LoadedTransfers: true,
	}
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateLogStream(ctx, userID, ls)
	}))

	w, err := s.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, ls, w.LogStream)
	assert.Equal(t, testWalletURI, w.Entrypoints.URI)
}

func TestUpdateLogStream_MissingWallet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateLogStream(ctx, 7, records.LogStream{})
	})
	assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))
}

func TestPutWallet_ReplacesEntrypoints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)

	w, err := s.GetWallet(ctx, userID)
	require.NoError(t, err)
	w.Entrypoints.RequirePin = true
	w.LogStream.LatestEntryID = 3
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.PutWallet(ctx, w)
	}))

	got, err := s.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.Entrypoints.RequirePin)
	assert.Equal(t, int64(3), got.LogStream.LatestEntryID)
}
