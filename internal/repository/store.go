package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lukasedel/docsorter/internal/common"
)

// SQLDocumentStore implements DocumentStore over database/sql, so the same
// code serves Postgres (pgx stdlib driver) and SQLite (modernc driver).
type SQLDocumentStore struct {
	db *sql.DB
}

func NewSQLDocumentStore(db *sql.DB) *SQLDocumentStore {
	return &SQLDocumentStore{db: db}
}

func (s *SQLDocumentStore) ListPending(ctx context.Context, limit int) ([]Document, error) {
	query := `SELECT id, filename, processed, COALESCE(last_error, '')
		FROM documents WHERE processed = FALSE ORDER BY created_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list pending documents")
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var id string
		if err := rows.Scan(&id, &d.Filename, &d.Processed, &d.LastError); err != nil {
			return nil, common.WrapError(err, "scan document row")
		}
		d.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("document id %q: %w", id, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLDocumentStore) Fetch(ctx context.Context, id uuid.UUID) ([]byte, Document, error) {
	var content []byte
	d := Document{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, content, processed, COALESCE(last_error, '')
		FROM documents WHERE id = $1`, id.String(),
	).Scan(&d.Filename, &content, &d.Processed, &d.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d, common.NewAppError("DOCUMENT_NOT_FOUND", id.String(), common.ErrNotFound)
	}
	if err != nil {
		return nil, d, common.WrapError(err, "fetch document")
	}
	return content, d, nil
}

func (s *SQLDocumentStore) Rename(ctx context.Context, id uuid.UUID, newFilename string, markProcessed bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET filename = $1, processed = $2, last_error = NULL, updated_at = $3
		WHERE id = $4`,
		newFilename, markProcessed, time.Now().UTC(), id.String())
	if err != nil {
		return false, common.WrapError(err, "rename document")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, common.WrapError(err, "rename document: rows affected")
	}
	return affected > 0, nil
}

func (s *SQLDocumentStore) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET last_error = $1, updated_at = $2 WHERE id = $3`,
		message, time.Now().UTC(), id.String())
	if err != nil {
		return common.WrapError(err, "record document error")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "record document error: rows affected")
	}
	if affected == 0 {
		return common.NewAppError("DOCUMENT_NOT_FOUND", id.String(), common.ErrNotFound)
	}
	return nil
}
