package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

// PutDocument stores a fetched document, replacing an older copy.
func (t *Tx) PutDocument(ctx context.Context, d records.Document) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO documents (iri, content_type, sha256, content, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(iri) DO UPDATE SET
			content_type = excluded.content_type,
			sha256 = excluded.sha256,
			content = excluded.content,
			fetched_at = excluded.fetched_at
	`, d.IRI, d.ContentType, d.SHA256, d.Content, toMillis(d.FetchedAt))
	if err != nil {
		return fmt.Errorf("put document %s: %w", d.IRI, err)
	}
	t.record(Change{Kind: ChangeDocument, URI: d.IRI})
	return nil
}

// GetDocument returns the stored document with the given IRI, or an error
// of kind RecordDoesNotExist.
func (t *Tx) GetDocument(ctx context.Context, iri string) (records.Document, error) {
	var (
		d         records.Document
		fetchedAt int64
	)
	err := t.q.QueryRowContext(ctx, `
		SELECT iri, content_type, sha256, content, fetched_at FROM documents WHERE iri = ?
	`, iri).Scan(&d.IRI, &d.ContentType, &d.SHA256, &d.Content, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Document{}, fault.New(fault.KindRecordDoesNotExist, "get document", iri)
	}
	if err != nil {
		return records.Document{}, fmt.Errorf("get document %s: %w", iri, err)
	}
	d.FetchedAt = fromMillis(fetchedAt)
	return d, nil
}

// GetDocument returns the stored document with the given IRI.
func (s *Store) GetDocument(ctx context.Context, iri string) (records.Document, error) {
	return s.reader().GetDocument(ctx, iri)
}

// PutDocument stores a fetched document in its own transaction.
func (s *Store) PutDocument(ctx context.Context, d records.Document) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.PutDocument(ctx, d)
	})
}
