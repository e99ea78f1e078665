package store

import (
	"context"
	"database/sql"
	"time"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a unit of work. Reads and writes made through the same Tx see each
// other; writes are recorded in the change set.
type Tx struct {
	q       querier
	changes []Change
}

// ChangeKind classifies a change.
type ChangeKind int

const (
	ChangeWallet ChangeKind = iota + 1
	ChangeObject
	ChangeAction
	ChangeTask
	ChangeDocument
)

// Change describes one committed write.
type Change struct {
	Kind   ChangeKind
	UserID int64

	// Object changes. A deletion with an empty URI means every object of
	// the user was removed.
	URI        string
	ObjectType string
	AccountURI string
	Deleted    bool

	// Action and task changes.
	ID int64
}

func (t *Tx) record(c Change) {
	t.changes = append(t.changes, c)
}

// Touches reports whether changes include a change of kind for userID.
func Touches(changes []Change, kind ChangeKind, userID int64) bool {
	for _, c := range changes {
		if c.Kind == kind && c.UserID == userID {
			return true
		}
	}
	return false
}

// TouchesObjects reports whether changes include an object change of
// objectType for userID.
func TouchesObjects(changes []Change, objectType string, userID int64) bool {
	for _, c := range changes {
		if c.Kind == ChangeObject && c.UserID == userID && c.ObjectType == objectType {
			return true
		}
	}
	return false
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
