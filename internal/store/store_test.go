package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("database file missing: %v", err)
		}
		var count int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM wallets").Scan(&count); err != nil {
			t.Errorf("iteration %d: query failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/wallet.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose(t *testing.T) {
	if err := (&Store{}).Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}

	s, err := Open(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	_ = s.Close()
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	// synchronous NORMAL = 1, foreign_keys ON = 1
	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range pragmas {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

// Schema tests


func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"wallets":   {"user_id", "wallet_uri", "entrypoints", "latest_entry_id", "forthcoming", "is_broken", "loaded_transfers"},
		"objects":   {"user_id", "uri", "object_type", "account_uri", "latest_update_id", "data"},
		"actions":   {"action_id", "user_id", "action_type", "account_uri", "per_account", "created_at", "digest", "data"},
		"tasks":     {"task_id", "user_id", "task_type", "dedup_key", "scheduled_for", "data"},
		"documents": {"iri", "content_type", "sha256", "content", "fetched_at"},
	}

	for table, cols := range expected {
		columns := getTableColumns(t, s.db, table)
		for _, col := range cols {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	expected := map[string]string{
		"objects": "idx_objects_type",
		"actions": "idx_actions_per_account",
		"tasks":   "idx_tasks_due",
	}
	for table, index := range expected {
		if !contains(getTableIndexes(t, s.db, table), index) {
			t.Errorf("%s table missing index %q", table, index)
		}
	}
}

// Constraint tests

func TestConstraint_ForeignKeyObjectToWallet(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO objects (user_id, uri, object_type, latest_update_id, data)
		VALUES (999, 'https://example.com/x', 'Transfer', 1, '{}')
	`)
	if err == nil {
		t.Error("expected foreign key violation for unknown user")
	}
}

func TestConstraint_PerAccountActionUnique(t *testing.T) {
	s := createTestStore(t)
	userID := createTestWallet(t, s)

	insert := `
		INSERT INTO actions (user_id, action_type, account_uri, per_account, created_at, digest, data)
		VALUES (?, 'ConfigAccount', 'https://example.com/a/', ?, 0, '', '{}')
	`
	if _, err := s.db.Exec(insert, userID, 1); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := s.db.Exec(insert, userID, 1); err == nil {
		t.Error("expected unique violation for second per-account action")
	}
	// Rows outside the partial index are not constrained.
	if _, err := s.db.Exec(insert, userID, 0); err != nil {
		t.Errorf("non per-account insert failed: %v", err)
	}
}

func TestConstraint_WalletDeleteCascades(t *testing.T) {
	s := createTestStore(t)
	userID := createTestWallet(t, s)

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.PutObject(context.Background(), userID, createTestLedger("https://example.com/a/", 1, 1))
	})
	if err != nil {
		t.Fatalf("PutObject() failed: %v", err)
	}

	if _, err := s.db.Exec(`DELETE FROM wallets WHERE user_id = ?`, userID); err != nil {
		t.Fatalf("delete wallet failed: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM objects`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("objects left after wallet delete: %d", count)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open and close multiple times - migrations should be idempotent
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}

		var version int
		if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}

		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}

		s.Close()
	}
}

func TestMigration_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion+1)); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected Open() to refuse a newer schema version")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
