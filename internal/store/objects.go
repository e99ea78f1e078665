package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
)

// PutObject inserts or overwrites a server object.
func (t *Tx) PutObject(ctx context.Context, userID int64, obj canonical.Object) error {
	data, err := canonical.Encode(obj)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO objects (user_id, uri, object_type, account_uri, latest_update_id, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, uri) DO UPDATE SET
			object_type = excluded.object_type,
			account_uri = excluded.account_uri,
			latest_update_id = excluded.latest_update_id,
			data = excluded.data
	`, userID, obj.ObjectURI(), obj.ObjectType(), obj.OwnerAccount(), obj.UpdateID(), string(data))
	if err != nil {
		return fmt.Errorf("put object %s: %w", obj.ObjectURI(), err)
	}
	t.record(Change{
		Kind:       ChangeObject,
		UserID:     userID,
		URI:        obj.ObjectURI(),
		ObjectType: obj.ObjectType(),
		AccountURI: obj.OwnerAccount(),
	})
	return nil
}

// GetObject returns the stored object at uri, or an error of kind
// RecordDoesNotExist.
func (t *Tx) GetObject(ctx context.Context, userID int64, uri string) (canonical.Object, error) {
	var objectType, data string
	err := t.q.QueryRowContext(ctx, `
		SELECT object_type, data FROM objects WHERE user_id = ? AND uri = ?
	`, userID, uri).Scan(&objectType, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.New(fault.KindRecordDoesNotExist, "get object", uri)
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", uri, err)
	}
	return canonical.Decode(objectType, []byte(data))
}

// ObjectUpdateID returns the stored latestUpdateId of the object at uri.
// ok is false when no object is stored there.
func (t *Tx) ObjectUpdateID(ctx context.Context, userID int64, uri string) (id int64, ok bool, err error) {
	err = t.q.QueryRowContext(ctx, `
		SELECT latest_update_id FROM objects WHERE user_id = ? AND uri = ?
	`, userID, uri).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("object update id %s: %w", uri, err)
	}
	return id, true, nil
}

// ListObjects returns all stored objects of a family, ordered by URI.
func (t *Tx) ListObjects(ctx context.Context, userID int64, objectType string) ([]canonical.Object, error) {
	return t.queryObjects(ctx, `
		SELECT object_type, data FROM objects
		WHERE user_id = ? AND object_type = ?
		ORDER BY uri COLLATE BINARY ASC
	`, userID, objectType)
}

// ListAccountObjects returns the account and all its sub-objects, ordered
// by URI.
func (t *Tx) ListAccountObjects(ctx context.Context, userID int64, accountURI string) ([]canonical.Object, error) {
	return t.queryObjects(ctx, `
		SELECT object_type, data FROM objects
		WHERE user_id = ? AND account_uri = ?
		ORDER BY uri COLLATE BINARY ASC
	`, userID, accountURI)
}

func (t *Tx) queryObjects(ctx context.Context, query string, args ...any) ([]canonical.Object, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	objects := []canonical.Object{}
	for rows.Next() {
		var objectType, data string
		if err := rows.Scan(&objectType, &data); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		obj, err := canonical.Decode(objectType, []byte(data))
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return objects, nil
}

// DeleteObject removes the object at uri. Deleting a missing object is not
// an error.
func (t *Tx) DeleteObject(ctx context.Context, userID int64, uri string) error {
	var objectType, accountURI string
	err := t.q.QueryRowContext(ctx, `
		SELECT object_type, account_uri FROM objects WHERE user_id = ? AND uri = ?
	`, userID, uri).Scan(&objectType, &accountURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete object %s: %w", uri, err)
	}
	if _, err := t.q.ExecContext(ctx,
		`DELETE FROM objects WHERE user_id = ? AND uri = ?`, userID, uri,
	); err != nil {
		return fmt.Errorf("delete object %s: %w", uri, err)
	}
	t.record(Change{
		Kind:       ChangeObject,
		UserID:     userID,
		URI:        uri,
		ObjectType: objectType,
		AccountURI: accountURI,
		Deleted:    true,
	})
	return nil
}

// DeleteAccount removes an account, all its sub-objects and every action
// that refers to it.
func (t *Tx) DeleteAccount(ctx context.Context, userID int64, accountURI string) error {
	objects, err := t.ListAccountObjects(ctx, userID, accountURI)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := t.DeleteObject(ctx, userID, obj.ObjectURI()); err != nil {
			return err
		}
	}
	// The account core may be missing while sub-objects are present.
	if err := t.DeleteObject(ctx, userID, accountURI); err != nil {
		return err
	}
	return t.DeleteAccountActions(ctx, userID, accountURI)
}

// ClearObjects removes every stored object of a user.
func (t *Tx) ClearObjects(ctx context.Context, userID int64) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM objects WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear objects: %w", err)
	}
	t.record(Change{Kind: ChangeObject, UserID: userID, Deleted: true})
	return nil
}

// Reader is the read side shared by Store and Tx.
type Reader interface {
	GetObject(ctx context.Context, userID int64, uri string) (canonical.Object, error)
}

// Get returns the object at uri as type T. A stored object of another type
// is reported as WrongObjectType.
func Get[T canonical.Object](ctx context.Context, r Reader, userID int64, uri string) (T, error) {
	var zero T
	obj, err := r.GetObject(ctx, userID, uri)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fault.New(fault.KindWrongObjectType, "get object",
			fmt.Sprintf("%s is a %s", uri, obj.ObjectType()))
	}
	return v, nil
}

// List returns all stored objects of objectType as type T.
func List[T canonical.Object](ctx context.Context, s *Store, userID int64, objectType string) ([]T, error) {
	objects, err := s.ListObjects(ctx, userID, objectType)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(objects))
	for _, obj := range objects {
		if v, ok := obj.(T); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// GetObject returns the stored object at uri.
func (s *Store) GetObject(ctx context.Context, userID int64, uri string) (canonical.Object, error) {
	return s.reader().GetObject(ctx, userID, uri)
}

// ListObjects returns all stored objects of a family, ordered by URI.
func (s *Store) ListObjects(ctx context.Context, userID int64, objectType string) ([]canonical.Object, error) {
	return s.reader().ListObjects(ctx, userID, objectType)
}

// ListAccountObjects returns the account and all its sub-objects.
func (s *Store) ListAccountObjects(ctx context.Context, userID int64, accountURI string) ([]canonical.Object, error) {
	return s.reader().ListAccountObjects(ctx, userID, accountURI)
}

// ObjectUpdateID returns the stored latestUpdateId of the object at uri.
func (s *Store) ObjectUpdateID(ctx context.Context, userID int64, uri string) (int64, bool, error) {
	return s.reader().ObjectUpdateID(ctx, userID, uri)
}
