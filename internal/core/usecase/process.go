package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/observability/logging"
)

var _ ports.DocumentProcessor = (*Orchestrator)(nil)

// Orchestrator runs extract, table strategy, prepare, ingest and bind for one file at a time.
// Only the ingest step has side effects.
type Orchestrator struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	catalog   ports.NamespaceCatalog
	extractor ports.ContentExtractor
	tables    tableStrategy
	store     ports.IndexStore
	answerers *AnswererFactory
	events    ports.IndexEvents
	logger    *slog.Logger
}

func NewOrchestrator(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	catalog ports.NamespaceCatalog,
	extractor ports.ContentExtractor,
	store ports.IndexStore,
	answerers *AnswererFactory,
	events ports.IndexEvents,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	tables := newTableStrategy(extractor.Capabilities())
	logger.Info("table_strategy_selected", "strategy", tables.name())
	return &Orchestrator{
		repo:      repo,
		storage:   storage,
		catalog:   catalog,
		extractor: extractor,
		tables:    tables,
		store:     store,
		answerers: answerers,
		events:    events,
		logger:    logger,
	}
}

// Process indexes the file at path into namespace and returns an answerer bound to the resulting index.
func (o *Orchestrator) Process(ctx context.Context, path, namespace string) (ports.Answerer, domain.IngestReport, error) {
	report := domain.IngestReport{Namespace: namespace}
	if _, err := o.catalog.Resolve(namespace); err != nil {
		return nil, report, err
	}
	ctx = logging.WithAttrs(ctx, "namespace", namespace)

	text, err := collect(o.extractor.Extract(ctx, path, domain.ExtractText))
	if err != nil {
		return nil, report, fmt.Errorf("extract text: %w", err)
	}

	kept, tables, err := o.tables.split(ctx, o.extractor, path, text)
	if err != nil {
		return nil, report, err
	}

	fragments := PrepareFragments(append(kept, tables...))

	index, report, err := o.store.Ingest(ctx, namespace, fragments, path)
	if err != nil {
		return nil, report, fmt.Errorf("ingest fragments: %w", err)
	}

	o.logger.Info("ingest_completed",
		"namespace", namespace,
		"text_fragments", len(kept),
		"table_fragments", len(tables),
		"fragments_added", report.FragmentsAdded,
		"skipped", report.Skipped,
	)
	return o.answerers.Bind(index), report, nil
}

func (o *Orchestrator) ProcessByID(ctx context.Context, documentID string) error {
	_, _, err := o.Run(ctx, documentID)
	return err
}

// Run processes a stored document record and moves it through the status flow.
func (o *Orchestrator) Run(ctx context.Context, documentID string) (ports.Answerer, *domain.IngestReport, error) {
	if err := o.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return nil, nil, fmt.Errorf("set status=processing: %w", err)
	}

	doc, err := o.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, o.fail(ctx, documentID, fmt.Errorf("fetch document by id: %w", err))
	}
	ctx = logging.WithAttrs(ctx, "document_id", documentID)
	if err := o.verifyStored(ctx, doc); err != nil {
		return nil, nil, o.fail(ctx, documentID, err)
	}

	answerer, report, err := o.Process(ctx, o.storage.Path(doc.StoragePath), doc.Namespace)
	if err != nil {
		return nil, nil, o.fail(ctx, documentID, err)
	}

	if err := o.repo.SaveIngestReport(ctx, documentID, report); err != nil {
		return nil, nil, o.fail(ctx, documentID, fmt.Errorf("save ingest report: %w", err))
	}
	if err := o.markStatus(ctx, documentID, report.Status(), ""); err != nil {
		return nil, nil, fmt.Errorf("set status=%s: %w", report.Status(), err)
	}

	if !report.Skipped && o.events != nil {
		if err := o.events.PublishIndexUpdated(ctx, doc.Namespace); err != nil {
			o.logger.Warn("index_event_publish_failed", "namespace", doc.Namespace, "error", err)
		}
	}
	return answerer, &report, nil
}

// verifyStored checks that the stored bytes still match the hash taken at upload.
// Records without an upload hash are processed as they are.
func (o *Orchestrator) verifyStored(ctx context.Context, doc *domain.Document) error {
	if doc.FileHash == "" {
		return nil
	}
	rc, err := o.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.WrapError(domain.ErrExtraction, "open stored document", err)
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return domain.WrapError(domain.ErrExtraction, "read stored document", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != doc.FileHash {
		return domain.WrapError(domain.ErrInvalidInput, "verify stored document",
			fmt.Errorf("stored file %s changed since upload: hash %s, expected %s", doc.StoragePath, got, doc.FileHash))
	}
	return nil
}

func (o *Orchestrator) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return o.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (o *Orchestrator) fail(ctx context.Context, documentID string, processErr error) error {
	if failErr := o.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error()); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", processErr, failErr)
	}
	return processErr
}

// collect drains an extraction sequence, stopping at the first error.
func collect(seq iter.Seq2[domain.Fragment, error]) ([]domain.Fragment, error) {
	var out []domain.Fragment
	for f, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
