package usecase

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.DocumentUploader = (*UploadDocumentUseCase)(nil)

const pdfMimeType = "application/pdf"

var pdfMagic = []byte("%PDF-")

type UploadDocumentUseCase struct {
	repo         ports.DocumentRepository
	storage      ports.ObjectStorage
	archive      ports.DocumentArchive
	queue        ports.MessageQueue
	catalog      ports.NamespaceCatalog
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewUploadDocumentUseCase builds the upload flow. archive and queue may be nil:
// without a queue async uploads are rejected.
func NewUploadDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	archive ports.DocumentArchive,
	queue ports.MessageQueue,
	catalog ports.NamespaceCatalog,
	orchestrator *Orchestrator,
	logger *slog.Logger,
) *UploadDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadDocumentUseCase{
		repo:         repo,
		storage:      storage,
		archive:      archive,
		queue:        queue,
		catalog:      catalog,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadOutcome, error) {
	if _, err := uc.catalog.Resolve(req.Namespace); err != nil {
		return nil, err
	}
	if req.Async && uc.queue == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("async ingestion is not configured"))
	}
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file body is required"))
	}

	body, err := requirePDF(req.Filename, req.MimeType, req.Body)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	filename := sanitizeFilename(req.Filename)
	// Each upload gets its own folder so a later file with the same name cannot
	// replace bytes a queued record still points at.
	storageKey := path.Join(req.Namespace, id, filename)
	now := time.Now().UTC()

	hasher := sha256.New()
	if err := uc.storage.Save(ctx, storageKey, io.TeeReader(body, hasher)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	uc.archiveCopy(ctx, id, storageKey)

	doc := &domain.Document{
		ID:          id,
		Namespace:   req.Namespace,
		Filename:    filepath.Base(req.Filename),
		MimeType:    pdfMimeType,
		StoragePath: storageKey,
		FileHash:    hex.EncodeToString(hasher.Sum(nil)),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if req.Async {
		if err := uc.queue.PublishIngestRequested(ctx, doc.ID); err != nil {
			return nil, fmt.Errorf("publish ingestion event: %w", err)
		}
		return &ports.UploadOutcome{Document: doc}, nil
	}

	answerer, report, err := uc.orchestrator.Run(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if stored, getErr := uc.repo.GetByID(ctx, doc.ID); getErr == nil {
		doc = stored
	}
	return &ports.UploadOutcome{Document: doc, Report: report, Answerer: answerer}, nil
}

// archiveCopy uploads the stored file to the archive. Failures are logged, the upload proceeds.
func (uc *UploadDocumentUseCase) archiveCopy(ctx context.Context, documentID, storageKey string) {
	if uc.archive == nil {
		return
	}
	rc, err := uc.storage.Open(ctx, storageKey)
	if err != nil {
		uc.logger.Warn("document_archive_failed", "document_id", documentID, "error", err)
		return
	}
	defer rc.Close()

	location, err := uc.archive.Archive(ctx, storageKey, rc, pdfMimeType)
	if err != nil {
		uc.logger.Warn("document_archive_failed", "document_id", documentID, "error", err)
		return
	}
	uc.logger.Info("document_archived", "document_id", documentID, "location", location)
}

// requirePDF accepts a .pdf name or PDF content type and checks the magic bytes.
// The returned reader replays the peeked bytes.
func requirePDF(filename, mimeType string, body io.Reader) (io.Reader, error) {
	byName := strings.EqualFold(filepath.Ext(filename), ".pdf")
	byType := strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), pdfMimeType)
	if !byName && !byType {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("only PDF files are accepted, got %q", filename))
	}

	br := bufio.NewReader(body)
	head, err := br.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file is not a PDF document"))
	}
	return br, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.pdf"
	}
	return base
}
