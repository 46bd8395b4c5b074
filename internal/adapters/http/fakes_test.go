package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mewerton/universal-system/internal/config"
	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/core/usecase"
	"github.com/mewerton/universal-system/internal/observability/metrics"
)

type uploaderFake struct {
	err      error
	requests []ports.UploadRequest
	answerer ports.Answerer
}

func (f *uploaderFake) Upload(_ context.Context, req ports.UploadRequest) (*ports.UploadOutcome, error) {
	if _, err := io.ReadAll(req.Body); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	doc := &domain.Document{ID: "doc-1", Namespace: req.Namespace, Filename: req.Filename, Status: domain.StatusUploaded}
	if req.Async {
		return &ports.UploadOutcome{Document: doc}, nil
	}
	doc.Status = domain.StatusReady
	return &ports.UploadOutcome{
		Document: doc,
		Report:   &domain.IngestReport{Namespace: req.Namespace, Created: true, FragmentsAdded: 3},
		Answerer: f.answerer,
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Namespace: "rh", Status: domain.StatusReady}, nil
}

func (f docsFake) ListByNamespace(_ context.Context, namespace string, _ int) ([]domain.Document, error) {
	return []domain.Document{{ID: "doc-1", Namespace: namespace}}, nil
}

type catalogFake struct {
	known map[string]bool
}

func newCatalogFake(ids ...string) catalogFake {
	c := catalogFake{known: map[string]bool{}}
	for _, id := range ids {
		c.known[id] = true
	}
	return c
}

func (c catalogFake) Resolve(namespace string) (domain.Namespace, error) {
	if !c.known[namespace] {
		return domain.Namespace{}, domain.WrapError(domain.ErrNamespaceNotFound, "resolve namespace", errors.New(namespace))
	}
	return domain.Namespace{ID: namespace}, nil
}

func (c catalogFake) List(context.Context) ([]domain.NamespaceSummary, error) {
	out := make([]domain.NamespaceSummary, 0, len(c.known))
	for id := range c.known {
		out = append(out, domain.NamespaceSummary{Namespace: domain.Namespace{ID: id}})
	}
	return out, nil
}

type exporterFake struct {
	err error
}

func (f exporterFake) ExportTables(_ context.Context, _ string, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := w.Write([]byte("PK-xlsx"))
	return 1, err
}

type answererFake struct {
	namespace string
	text      string
	err       error
	questions []string
}

func (a *answererFake) Namespace() string { return a.namespace }

func (a *answererFake) Answer(_ context.Context, question string) (*domain.AnswerResult, error) {
	a.questions = append(a.questions, question)
	if a.err != nil {
		return nil, a.err
	}
	return &domain.AnswerResult{Namespace: a.namespace, Text: a.text}, nil
}

type loaderFake struct {
	answerers map[string]*answererFake
	opens     int
}

func (l *loaderFake) Open(_ context.Context, namespace string) (ports.Answerer, error) {
	l.opens++
	a, ok := l.answerers[namespace]
	if !ok {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "open answerer", errors.New(namespace))
	}
	return a, nil
}

type routerDeps struct {
	uploader *uploaderFake
	docs     docsFake
	exporter exporterFake
	loader   *loaderFake
	metrics  *metrics.HTTPServerMetrics
}

func newTestRouter(cfg config.Config, deps routerDeps) http.Handler {
	if deps.uploader == nil {
		deps.uploader = &uploaderFake{}
	}
	if deps.loader == nil {
		deps.loader = &loaderFake{answerers: map[string]*answererFake{}}
	}
	return NewRouter(cfg, Dependencies{
		Uploader:  deps.uploader,
		Documents: deps.docs,
		Catalog:   newCatalogFake("rh", "vendas"),
		Exporter:  deps.exporter,
		Sessions:  usecase.NewSessionRegistry(deps.loader, time.Minute),
		Metrics:   deps.metrics,
	}).Handler()
}
