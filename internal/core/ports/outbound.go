package ports

import (
	"context"
	"io"
	"iter"

	"github.com/mewerton/universal-system/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByNamespace(ctx context.Context, namespace string, limit int) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIngestReport(ctx context.Context, id string, report domain.IngestReport) error
}

// ObjectStorage stores source documents on a local filesystem the extractors can read.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// DocumentArchive keeps an off-host copy of uploaded files.
type DocumentArchive interface {
	Archive(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
}

// MessageQueue publishes/consumes ingestion requests.
type MessageQueue interface {
	PublishIngestRequested(ctx context.Context, documentID string) error
	SubscribeIngestRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// IndexEvents broadcasts namespace index changes so cached bindings can be dropped.
type IndexEvents interface {
	PublishIndexUpdated(ctx context.Context, namespace string) error
	SubscribeIndexUpdated(ctx context.Context, handler func(context.Context, string)) error
}

// ContentExtractor yields fragments from a source file.
// The sequence opens the file on first pull and releases it when iteration stops.
type ContentExtractor interface {
	Capabilities() domain.ExtractorCapabilities
	Extract(ctx context.Context, path string, mode domain.ExtractMode) iter.Seq2[domain.Fragment, error]
}

// Embedder builds vectors for fragments and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// ChatRequest is a single-turn completion with a fixed system contract.
type ChatRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ChatModel is the hosted language model.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// TokenEstimator approximates the token count of a prompt.
type TokenEstimator interface {
	Estimate(text string) int
}

// VectorIndex is an immutable snapshot of one namespace index.
type VectorIndex interface {
	Namespace() string
	Len() int
	Dimension() int
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredFragment, error)
	Fragments() iter.Seq[domain.Fragment]
}

// IndexStore owns the durable per-namespace indexes.
type IndexStore interface {
	LoadOrInit(ctx context.Context, namespace string) (VectorIndex, bool, error)
	Ingest(ctx context.Context, namespace string, fragments []domain.Fragment, sourcePath string) (VectorIndex, domain.IngestReport, error)
	Stats(ctx context.Context, namespace string) (domain.IndexStats, error)
}

// TableWorkbookWriter renders table fragments into a spreadsheet.
type TableWorkbookWriter interface {
	WriteTables(w io.Writer, tables []domain.Fragment) error
}
