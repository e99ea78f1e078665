package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

// CreateAction inserts a new action and returns it with its assigned id.
// A per-account action that already exists for the account fails with
// ConflictingUpdate; use EnsureAccountAction or ReplaceAccountAction for
// those.
func (t *Tx) CreateAction(ctx context.Context, a records.Action) (records.Action, error) {
	a, inserted, err := t.insertAction(ctx, a)
	if err != nil {
		return records.Action{}, err
	}
	if !inserted {
		return records.Action{}, fault.New(fault.KindConflictingUpdate, "create action",
			fmt.Sprintf("%s action already exists for %s", a.Type, a.AccountURI))
	}
	return a, nil
}

// EnsureAccountAction returns the existing action of a.Type for
// a.AccountURI, or inserts a when there is none.
//
// Returns the stored action and whether it was inserted.
func (t *Tx) EnsureAccountAction(ctx context.Context, a records.Action) (records.Action, bool, error) {
	if !a.Type.PerAccount() {
		return records.Action{}, false, fmt.Errorf("ensure account action: %s is not a per-account action", a.Type)
	}
	return t.insertAction(ctx, a)
}

// ReplaceAccountAction deletes any existing action of a.Type for
// a.AccountURI and inserts a.
func (t *Tx) ReplaceAccountAction(ctx context.Context, a records.Action) (records.Action, error) {
	existing, ok, err := t.FindAccountAction(ctx, a.UserID, a.Type, a.AccountURI)
	if err != nil {
		return records.Action{}, err
	}
	if ok {
		if err := t.DeleteAction(ctx, existing.ActionID); err != nil {
			return records.Action{}, err
		}
	}
	return t.CreateAction(ctx, a)
}

// insertAction inserts a, or returns the existing per-account action it
// conflicts with and inserted=false.
func (t *Tx) insertAction(ctx context.Context, a records.Action) (records.Action, bool, error) {
	if err := a.Validate(); err != nil {
		return records.Action{}, false, fmt.Errorf("insert action: %w", err)
	}

	result, err := t.q.ExecContext(ctx, `
		INSERT INTO actions (user_id, action_type, account_uri, per_account, created_at, digest, data)
		VALUES (?, ?, ?, ?, ?, '', '{}')
		ON CONFLICT(user_id, action_type, account_uri) WHERE per_account = 1 DO NOTHING
	`, a.UserID, string(a.Type), a.AccountURI, boolInt(a.Type.PerAccount()), toMillis(a.CreatedAt))
	if err != nil {
		return records.Action{}, false, fmt.Errorf("insert action: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return records.Action{}, false, fmt.Errorf("insert action: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		existing, ok, err := t.FindAccountAction(ctx, a.UserID, a.Type, a.AccountURI)
		if err != nil {
			return records.Action{}, false, err
		}
		if !ok {
			return records.Action{}, false, fmt.Errorf("insert action: conflicting %s action vanished", a.Type)
		}
		return existing, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return records.Action{}, false, fmt.Errorf("insert action: last insert id: %w", err)
	}
	a.ActionID = id
	if err := t.writeAction(ctx, a); err != nil {
		return records.Action{}, false, err
	}
	return a, true, nil
}

// writeAction stores the data and digest of an existing row.
func (t *Tx) writeAction(ctx context.Context, a records.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	digest, err := records.Digest(a)
	if err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, `
		UPDATE actions SET digest = ?, data = ? WHERE action_id = ?
	`, digest, string(data), a.ActionID); err != nil {
		return fmt.Errorf("write action %d: %w", a.ActionID, err)
	}
	t.record(Change{Kind: ChangeAction, UserID: a.UserID, ID: a.ActionID, AccountURI: a.AccountURI})
	return nil
}

// GetAction returns the action with the given id, or an error of kind
// RecordDoesNotExist.
func (t *Tx) GetAction(ctx context.Context, actionID int64) (records.Action, error) {
	row := t.q.QueryRowContext(ctx, `SELECT data FROM actions WHERE action_id = ?`, actionID)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Action{}, fault.New(fault.KindRecordDoesNotExist, "get action",
			fmt.Sprintf("action %d", actionID))
	}
	return a, err
}

// FindAccountAction returns the action of type actionType for accountURI.
func (t *Tx) FindAccountAction(ctx context.Context, userID int64, actionType records.ActionType, accountURI string) (records.Action, bool, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT data FROM actions
		WHERE user_id = ? AND action_type = ? AND account_uri = ?
		ORDER BY action_id ASC LIMIT 1
	`, userID, string(actionType), accountURI)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Action{}, false, nil
	}
	if err != nil {
		return records.Action{}, false, err
	}
	return a, true, nil
}

// ListActions returns a user's actions in creation order.
func (t *Tx) ListActions(ctx context.Context, userID int64) ([]records.Action, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT data FROM actions WHERE user_id = ?
		ORDER BY created_at ASC, action_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []records.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// ReplaceAction stores next in place of prev, provided the stored action
// is still exactly prev. Otherwise, including when the action was deleted,
// it fails with RecordDoesNotExist and stores nothing.
func (t *Tx) ReplaceAction(ctx context.Context, prev, next records.Action) error {
	if prev.ActionID != next.ActionID || prev.UserID != next.UserID ||
		prev.Type != next.Type || prev.AccountURI != next.AccountURI {
		return fmt.Errorf("replace action %d: identity fields changed", prev.ActionID)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("replace action %d: %w", prev.ActionID, err)
	}

	want, err := records.Digest(prev)
	if err != nil {
		return err
	}
	var stored string
	err = t.q.QueryRowContext(ctx,
		`SELECT digest FROM actions WHERE action_id = ?`, prev.ActionID,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fault.New(fault.KindRecordDoesNotExist, "replace action",
			fmt.Sprintf("action %d was deleted", prev.ActionID))
	}
	if err != nil {
		return fmt.Errorf("replace action %d: %w", prev.ActionID, err)
	}
	if stored != want {
		return fault.New(fault.KindRecordDoesNotExist, "replace action",
			fmt.Sprintf("action %d was changed", prev.ActionID))
	}
	return t.writeAction(ctx, next)
}

// DeleteAction removes an action. Deleting a missing action is not an
// error.
func (t *Tx) DeleteAction(ctx context.Context, actionID int64) error {
	var userID int64
	var accountURI string
	err := t.q.QueryRowContext(ctx,
		`SELECT user_id, account_uri FROM actions WHERE action_id = ?`, actionID,
	).Scan(&userID, &accountURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete action %d: %w", actionID, err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM actions WHERE action_id = ?`, actionID); err != nil {
		return fmt.Errorf("delete action %d: %w", actionID, err)
	}
	t.record(Change{Kind: ChangeAction, UserID: userID, ID: actionID, AccountURI: accountURI, Deleted: true})
	return nil
}

// DeleteAccountActions removes every action that refers to accountURI.
func (t *Tx) DeleteAccountActions(ctx context.Context, userID int64, accountURI string) error {
	if accountURI == "" {
		return nil
	}
	result, err := t.q.ExecContext(ctx,
		`DELETE FROM actions WHERE user_id = ? AND account_uri = ?`, userID, accountURI)
	if err != nil {
		return fmt.Errorf("delete account actions: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		t.record(Change{Kind: ChangeAction, UserID: userID, AccountURI: accountURI, Deleted: true})
	}
	return nil
}

func scanAction(row scanner) (records.Action, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return records.Action{}, err
		}
		return records.Action{}, fmt.Errorf("scan action: %w", err)
	}
	var a records.Action
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return records.Action{}, fmt.Errorf("unmarshal action: %w", err)
	}
	return a, nil
}

// GetAction returns the action with the given id.
func (s *Store) GetAction(ctx context.Context, actionID int64) (records.Action, error) {
	return s.reader().GetAction(ctx, actionID)
}

// ListActions returns a user's actions in creation order.
func (s *Store) ListActions(ctx context.Context, userID int64) ([]records.Action, error) {
	return s.reader().ListActions(ctx, userID)
}

// FindAccountAction returns the action of type actionType for accountURI.
func (s *Store) FindAccountAction(ctx context.Context, userID int64, actionType records.ActionType, accountURI string) (records.Action, bool, error) {
	return s.reader().FindAccountAction(ctx, userID, actionType, accountURI)
}

// CreateAction inserts a new action in its own transaction.
func (s *Store) CreateAction(ctx context.Context, a records.Action) (created records.Action, err error) {
	err = s.WithTx(ctx, func(tx *Tx) error {
		created, err = tx.CreateAction(ctx, a)
		return err
	})
	return created, err
}

// EnsureAccountAction returns the existing per-account action or inserts a.
func (s *Store) EnsureAccountAction(ctx context.Context, a records.Action) (stored records.Action, inserted bool, err error) {
	err = s.WithTx(ctx, func(tx *Tx) error {
		stored, inserted, err = tx.EnsureAccountAction(ctx, a)
		return err
	})
	return stored, inserted, err
}

// ReplaceAction stores next in place of prev if prev is still current.
func (s *Store) ReplaceAction(ctx context.Context, prev, next records.Action) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.ReplaceAction(ctx, prev, next)
	})
}

// DeleteAction removes an action.
func (s *Store) DeleteAction(ctx context.Context, actionID int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.DeleteAction(ctx, actionID)
	})
}
