// Package memory keeps document records in process memory when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]domain.Document)}
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return fmt.Errorf("insert document: duplicate id %s", doc.ID)
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByNamespace(_ context.Context, namespace string, limit int) ([]domain.Document, error) {
	r.mu.RLock()
	out := make([]domain.Document, 0)
	for _, doc := range r.docs {
		if doc.Namespace == namespace {
			out = append(out, doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	return r.update(id, "update document status", func(doc *domain.Document) {
		doc.Status = status
		doc.Error = errMessage
	})
}

func (r *DocumentRepository) SaveIngestReport(_ context.Context, id string, report domain.IngestReport) error {
	return r.update(id, "save ingest report", func(doc *domain.Document) {
		doc.FileHash = report.FileHash
		doc.FragmentsAdded = report.FragmentsAdded
	})
}

func (r *DocumentRepository) update(id, op string, mutate func(*domain.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	mutate(&doc)
	doc.UpdatedAt = time.Now().UTC()
	r.docs[id] = doc
	return nil
}
