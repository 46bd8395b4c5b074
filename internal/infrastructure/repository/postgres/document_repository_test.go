package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mewerton/universal-system/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

var columns = []string{"id", "namespace", "filename", "mime_type", "storage_path", "file_hash", "status", "error_message", "fragments_added", "created_at", "updated_at"}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, namespace, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, namespace, filename").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("doc-1", "rh", "manual.pdf", "application/pdf", "rh/manual.pdf", "abc", "ready", "", 12, now, now))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Namespace != "rh" || doc.Status != domain.StatusReady || doc.FragmentsAdded != 12 || doc.FileHash != "abc" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestListByNamespaceDefaultsLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM documents").
		WithArgs("vendas", defaultListLimit).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("b", "vendas", "b.pdf", "application/pdf", "vendas/b.pdf", "", "uploaded", "", 0, now, now).
			AddRow("a", "vendas", "a.pdf", "application/pdf", "vendas/a.pdf", "h", "skipped", "", 0, now, now))

	docs, err := repo.ListByNamespace(context.Background(), "vendas", 0)
	if err != nil {
		t.Fatalf("ListByNamespace() error = %v", err)
	}
	if len(docs) != 2 || docs[1].Status != domain.StatusSkipped {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveIngestReportReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", "hash", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveIngestReport(context.Background(), "missing", domain.IngestReport{FileHash: "hash", FragmentsAdded: 3})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveIngestReportUpdatesRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "hash", 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveIngestReport(context.Background(), "doc-1", domain.IngestReport{FileHash: "hash", FragmentsAdded: 7}); err != nil {
		t.Fatalf("SaveIngestReport() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
