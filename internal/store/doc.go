// Package store provides SQLite-backed durable storage for the local wallet
// replica.
//
// The store keeps, per user:
//   - Wallet: entrypoint URIs and the log stream cursor
//   - Objects: server resources keyed by absolute URI, with their owning
//     account and latestUpdateId
//   - Actions: pending user operations
//   - Tasks: scheduled fire-and-forget server operations
//
// and, shared by all users, fetched debtor info documents.
//
// # Transactions and change sets
//
// Multi-record updates run in WithTx. Every write made through a Tx is
// recorded as a Change; after commit the change set is handed to OnCommit
// hooks, which is how live queries (WatchActions, WatchTransfers) and the
// accounts index stay current. A rolled back transaction publishes nothing.
//
// # Optimistic replace
//
// Each stored action carries the digest of its canonical JSON.
// ReplaceAction writes a new version only when the stored digest still
// equals the digest of the version the caller started from; otherwise it
// fails with fault.KindRecordDoesNotExist.
//
// # Idempotency
//
// Per-account actions are unique per (user, type, account) and scheduled
// tasks per (user, type, key); EnsureAccountAction and PutTask insert or
// return the existing record (ON CONFLICT DO NOTHING).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
