package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/records"
)

const testWalletURI = "https://demo.example.com/creditors/1/wallet"

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestWallet creates a wallet record and returns its user id.
func createTestWallet(t *testing.T, s *Store) int64 {
	t.Helper()
	var userID int64
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		w, _, err := tx.CreateWallet(context.Background(), canonical.Wallet{
			URI:  testWalletURI,
			Type: "Wallet",
			Log: canonical.PaginatedStream{
				Type:        "PaginatedStream",
				First:       "https://demo.example.com/creditors/1/log",
				Forthcoming: "https://demo.example.com/creditors/1/log?prev=0",
				ItemsType:   "LogEntry",
			},
		})
		userID = w.UserID
		return err
	})
	if err != nil {
		t.Fatalf("CreateWallet() failed: %v", err)
	}
	return userID
}

// createTestConfigAction builds a ConfigAccount action for accountURI.
func createTestConfigAction(userID int64, accountURI string) records.Action {
	return records.Action{
		UserID:        userID,
		Type:          records.ActionConfigAccount,
		CreatedAt:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		AccountURI:    accountURI,
		ConfigAccount: &records.ConfigAccount{EditedDebtorName: "Demo", EditedNegligibleAmount: 1},
	}
}

// createTestLedger builds an AccountLedger owned by accountURI.
func createTestLedger(accountURI string, principal, updateID int64) *canonical.AccountLedger {
	return &canonical.AccountLedger{
		URI:            accountURI + "ledger",
		Type:           "AccountLedger",
		Account:        canonical.ObjectReference{URI: accountURI},
		Principal:      principal,
		LatestUpdateID: updateID,
	}
}
