package repository

import (
	"context"

	"github.com/google/uuid"
)

// Document is one row of the document store, metadata only; the bytes are
// fetched separately and never held alongside the listing.
type Document struct {
	ID        uuid.UUID
	Filename  string
	Processed bool
	LastError string
}

// DocumentStore is the pipeline's view of wherever documents live. The
// store is a black box: fetch bytes, persist a new name, record failures.
type DocumentStore interface {
	// ListPending returns unprocessed documents, oldest first.
	// limit <= 0 means no limit.
	ListPending(ctx context.Context, limit int) ([]Document, error)

	// Fetch returns the document bytes and its metadata.
	Fetch(ctx context.Context, id uuid.UUID) ([]byte, Document, error)

	// Rename persists the new filename and optionally flags the document as
	// processed. Returns false when the document does not exist.
	Rename(ctx context.Context, id uuid.UUID, newFilename string, markProcessed bool) (bool, error)

	// RecordError stores a failure message against the document so the
	// operator can see and retry it later.
	RecordError(ctx context.Context, id uuid.UUID, message string) error
}
