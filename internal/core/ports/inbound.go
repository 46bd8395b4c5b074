package ports

import (
	"context"
	"io"

	"github.com/mewerton/universal-system/internal/core/domain"
)

// UploadRequest carries one source PDF into a namespace.
type UploadRequest struct {
	Namespace string
	Filename  string
	MimeType  string
	Body      io.Reader
	Async     bool
}

// UploadOutcome is the result of an upload. Answerer is nil for async uploads.
type UploadOutcome struct {
	Document *domain.Document
	Report   *domain.IngestReport
	Answerer Answerer
}

// DocumentUploader is the inbound contract for document upload orchestration.
type DocumentUploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadOutcome, error)
}

// Answerer answers questions grounded in one namespace index snapshot.
type Answerer interface {
	Namespace() string
	Answer(ctx context.Context, question string) (*domain.AnswerResult, error)
}

// AnswererLoader binds an answerer to the current persisted index of a namespace.
type AnswererLoader interface {
	Open(ctx context.Context, namespace string) (Answerer, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByNamespace(ctx context.Context, namespace string, limit int) ([]domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// NamespaceCatalog lists configured namespaces with their index state.
type NamespaceCatalog interface {
	List(ctx context.Context) ([]domain.NamespaceSummary, error)
	Resolve(namespace string) (domain.Namespace, error)
}

// TableExporter writes the table fragments of a namespace as a workbook.
type TableExporter interface {
	ExportTables(ctx context.Context, namespace string, w io.Writer) (int, error)
}
