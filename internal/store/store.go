// Package store persists entities as per-collection JSON documents in
// PostgreSQL. Every ledger collection (customers, stocks, invoices, cash
// boxes, ...) lives in the same documents table keyed by collection name and
// id, so compound operations can lock and write any mix of collections inside
// a single transaction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/defter-erp/defter/internal/shared"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Binding a
// Store to a transaction turns every call into part of that transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Document is a raw stored entity.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store reads and writes documents through a Querier.
type Store struct {
	q Querier
}

// New binds a Store to a pool or transaction.
func New(q Querier) *Store {
	return &Store{q: q}
}

// WithQuerier returns a Store bound to another querier, typically a pgx.Tx.
func (s *Store) WithQuerier(q Querier) *Store {
	return &Store{q: q}
}

const uniqueViolation = "23505"

// Insert creates a document. A unique index violation (e.g. a reused stock
// code) surfaces as shared.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, collection, id string, data []byte, now time.Time) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		collection, id, data, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("store: insert %s/%s: %w", collection, id, shared.ErrDuplicate)
		}
		return fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get fetches a document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	return s.get(ctx, collection, id, false)
}

// GetForUpdate fetches a document and locks its row until the surrounding
// transaction ends. Callers must acquire locks in the fixed order customers,
// stocks, invoices, cash boxes, bank accounts to stay deadlock free.
func (s *Store) GetForUpdate(ctx context.Context, collection, id string) (Document, error) {
	return s.get(ctx, collection, id, true)
}

func (s *Store) get(ctx context.Context, collection, id string, lock bool) (Document, error) {
	query := `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var doc Document
	err := s.q.QueryRow(ctx, query, collection, id).Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("store: %s/%s: %w", collection, id, shared.ErrNotFound)
		}
		return Document{}, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Update replaces a document body and refreshes updated_at.
func (s *Store) Update(ctx context.Context, collection, id string, data []byte, now time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE documents SET data = $3, updated_at = $4 WHERE collection = $1 AND id = $2`,
		collection, id, data, now)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %s/%s: %w", collection, id, shared.ErrNotFound)
	}
	return nil
}

// Delete removes a document, reporting whether a row was removed.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return false, fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns every document in a collection in insertion order.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 ORDER BY created_at, id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	return collect(rows, collection)
}

// FindByField returns documents whose top-level field equals value.
func (s *Store) FindByField(ctx context.Context, collection, field, value string) ([]Document, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY created_at, id`,
		collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("store: find %s by %s: %w", collection, field, err)
	}
	return collect(rows, collection)
}

// CountByField counts documents whose top-level field equals value.
func (s *Store) CountByField(ctx context.Context, collection, field, value string) (int, error) {
	var count int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1 AND data->>$2 = $3`,
		collection, field, value).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count %s by %s: %w", collection, field, err)
	}
	return count, nil
}

// Paginate returns one page of documents plus the total match count. A
// non-empty query matches case-insensitively against the name, code and
// document-number fields, so the same search works for customers, stocks,
// invoices and dispatch notes.
func (s *Store) Paginate(ctx context.Context, collection string, page, limit int, query string) ([]Document, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	where := `collection = $1`
	args := []any{collection}
	if query != "" {
		where += ` AND (data->>'name' ILIKE $2 OR data->>'code' ILIKE $2 OR data->>'invoiceNo' ILIKE $2 OR data->>'dispatchNo' ILIKE $2 OR data->>'customerName' ILIKE $2)`
		args = append(args, "%"+query+"%")
	}

	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: paginate count %s: %w", collection, err)
	}

	offset := (page - 1) * limit
	limitArg := strconv.Itoa(len(args) + 1)
	offsetArg := strconv.Itoa(len(args) + 2)
	args = append(args, limit, offset)

	rows, err := s.q.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE `+where+
			` ORDER BY data->>'name', created_at DESC, id LIMIT $`+limitArg+` OFFSET $`+offsetArg,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: paginate %s: %w", collection, err)
	}
	docs, err := collect(rows, collection)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func collect(rows pgx.Rows, collection string) ([]Document, error) {
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows %s: %w", collection, err)
	}
	return docs, nil
}
