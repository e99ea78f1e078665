package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

// CreateWallet returns the wallet record for entrypoints.URI, creating it
// if it does not exist yet. A new wallet's log cursor starts at the
// wallet's forthcoming log page, after its latest log entry.
//
// Returns the record and whether it was inserted.
func (t *Tx) CreateWallet(ctx context.Context, entrypoints canonical.Wallet) (records.Wallet, bool, error) {
	data, err := json.Marshal(entrypoints)
	if err != nil {
		return records.Wallet{}, false, fmt.Errorf("create wallet: %w", err)
	}

	result, err := t.q.ExecContext(ctx, `
		INSERT INTO wallets (wallet_uri, entrypoints, latest_entry_id, forthcoming)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(wallet_uri) DO NOTHING
	`, entrypoints.URI, string(data), entrypoints.LogLatestEntryID, entrypoints.Log.Forthcoming)
	if err != nil {
		return records.Wallet{}, false, fmt.Errorf("create wallet: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return records.Wallet{}, false, fmt.Errorf("create wallet: rows affected: %w", err)
	}

	var userID int64
	if err := t.q.QueryRowContext(ctx,
		`SELECT user_id FROM wallets WHERE wallet_uri = ?`, entrypoints.URI,
	).Scan(&userID); err != nil {
		return records.Wallet{}, false, fmt.Errorf("create wallet: select existing: %w", err)
	}

	w, err := t.GetWallet(ctx, userID)
	if err != nil {
		return records.Wallet{}, false, err
	}
	if rowsAffected > 0 {
		t.record(Change{Kind: ChangeWallet, UserID: userID})
	}
	return w, rowsAffected > 0, nil
}

// GetWallet returns the wallet record of a user.
func (t *Tx) GetWallet(ctx context.Context, userID int64) (records.Wallet, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT user_id, entrypoints, latest_entry_id, forthcoming, is_broken, loaded_transfers
		FROM wallets WHERE user_id = ?
	`, userID)
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Wallet{}, fault.New(fault.KindRecordDoesNotExist, "get wallet",
			fmt.Sprintf("no wallet for user %d", userID))
	}
	return w, err
}

// ListWallets returns all wallets ordered by user id.
func (t *Tx) ListWallets(ctx context.Context) ([]records.Wallet, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT user_id, entrypoints, latest_entry_id, forthcoming, is_broken, loaded_transfers
		FROM wallets ORDER BY user_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	wallets := []records.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return wallets, nil
}

// PutWallet overwrites the entrypoints and log stream of an existing
// wallet.
func (t *Tx) PutWallet(ctx context.Context, w records.Wallet) error {
	data, err := json.Marshal(w.Entrypoints)
	if err != nil {
		return fmt.Errorf("put wallet: %w", err)
	}
	ls := w.LogStream
	result, err := t.q.ExecContext(ctx, `
		UPDATE wallets
		SET entrypoints = ?, latest_entry_id = ?, forthcoming = ?, is_broken = ?, loaded_transfers = ?
		WHERE user_id = ?
	`, string(data), ls.LatestEntryID, ls.ForthcomingURI, boolInt(ls.IsBroken), boolInt(ls.LoadedTransfers), w.UserID)
	if err != nil {
		return fmt.Errorf("put wallet: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fault.New(fault.KindRecordDoesNotExist, "put wallet",
			fmt.Sprintf("no wallet for user %d", w.UserID))
	}
	t.record(Change{Kind: ChangeWallet, UserID: w.UserID})
	return nil
}

// UpdateLogStream overwrites the log stream cursor of a wallet.
func (t *Tx) UpdateLogStream(ctx context.Context, userID int64, ls records.LogStream) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE wallets
		SET latest_entry_id = ?, forthcoming = ?, is_broken = ?, loaded_transfers = ?
		WHERE user_id = ?
	`, ls.LatestEntryID, ls.ForthcomingURI, boolInt(ls.IsBroken), boolInt(ls.LoadedTransfers), userID)
	if err != nil {
		return fmt.Errorf("update log stream: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fault.New(fault.KindRecordDoesNotExist, "update log stream",
			fmt.Sprintf("no wallet for user %d", userID))
	}
	t.record(Change{Kind: ChangeWallet, UserID: userID})
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWallet(row scanner) (records.Wallet, error) {
	var (
		w           records.Wallet
		entrypoints string
		broken      int
		loaded      int
	)
	err := row.Scan(&w.UserID, &entrypoints, &w.LogStream.LatestEntryID,
		&w.LogStream.ForthcomingURI, &broken, &loaded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w, err
		}
		return w, fmt.Errorf("scan wallet: %w", err)
	}
	if err := json.Unmarshal([]byte(entrypoints), &w.Entrypoints); err != nil {
		return w, fmt.Errorf("unmarshal wallet entrypoints: %w", err)
	}
	w.LogStream.IsBroken = broken != 0
	w.LogStream.LoadedTransfers = loaded != 0
	return w, nil
}

// GetWallet returns the wallet record of a user.
func (s *Store) GetWallet(ctx context.Context, userID int64) (records.Wallet, error) {
	return s.reader().GetWallet(ctx, userID)
}

// ListWallets returns all wallets ordered by user id.
func (s *Store) ListWallets(ctx context.Context) ([]records.Wallet, error) {
	return s.reader().ListWallets(ctx)
}
