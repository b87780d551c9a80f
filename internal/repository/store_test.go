package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/lukasedel/docsorter/internal/common"
)

func newMockStore(t *testing.T) (*SQLDocumentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLDocumentStore(db), mock
}

func TestListPendingReturnsUnprocessedDocuments(t *testing.T) {
	store, mock := newMockStore(t)
	id1 := uuid.New()
	id2 := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "filename", "processed", "last_error"}).
		AddRow(id1.String(), "scan_001.pdf", false, "").
		AddRow(id2.String(), "scan_002.pdf", false, "timeout last run")
	mock.ExpectQuery("SELECT id, filename, processed").
		WithArgs(10).
		WillReturnRows(rows)

	docs, err := store.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("ListPending() returned %d docs, want 2", len(docs))
	}
	if docs[0].ID != id1 || docs[0].Filename != "scan_001.pdf" {
		t.Fatalf("unexpected first document: %+v", docs[0])
	}
	if docs[1].LastError != "timeout last run" {
		t.Fatalf("LastError = %q", docs[1].LastError)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFetchMissingDocumentMapsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT filename, content, processed").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"filename", "content", "processed", "last_error"}))

	_, _, err := store.Fetch(context.Background(), id)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFetchReturnsContentAndMetadata(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	content := []byte("%PDF-1.7 fake")

	rows := sqlmock.NewRows([]string{"filename", "content", "processed", "last_error"}).
		AddRow("scan_003.pdf", content, false, "")
	mock.ExpectQuery("SELECT filename, content, processed").
		WithArgs(id.String()).
		WillReturnRows(rows)

	got, doc, err := store.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("Fetch() content = %q", got)
	}
	if doc.Filename != "scan_003.pdf" || doc.Processed {
		t.Fatalf("unexpected metadata: %+v", doc)
	}
}

func TestRenameMarksProcessed(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE documents SET filename").
		WithArgs("Helvetia_Courtage_Leben_2025-01-15.pdf", true, sqlmock.AnyArg(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.Rename(context.Background(), id, "Helvetia_Courtage_Leben_2025-01-15.pdf", true)
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if !ok {
		t.Fatal("Rename() = false, want true")
	}
}

func TestRenameUnknownDocumentReturnsFalse(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE documents SET filename").
		WithArgs("x.pdf", false, sqlmock.AnyArg(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.Rename(context.Background(), id, "x.pdf", false)
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if ok {
		t.Fatal("Rename() = true for unknown document")
	}
}

func TestRecordErrorStoresMessage(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE documents SET last_error").
		WithArgs("inference backend unavailable after 4 attempts", sqlmock.AnyArg(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.RecordError(context.Background(), id, "inference backend unavailable after 4 attempts"); err != nil {
		t.Fatalf("RecordError() error = %v", err)
	}
}

func TestRecordErrorUnknownDocument(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE documents SET last_error").
		WithArgs("boom", sqlmock.AnyArg(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RecordError(context.Background(), id, "boom"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("RecordError() error = %v, want ErrNotFound", err)
	}
}
