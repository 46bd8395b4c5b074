package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type repoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	statusCalls []statusCall
	reports     map[string]domain.IngestReport
	createErr   error
}

func newRepoFake(docs ...*domain.Document) *repoFake {
	f := &repoFake{docs: map[string]*domain.Document{}, reports: map[string]domain.IngestReport{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *repoFake) ListByNamespace(context.Context, string, int) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *repoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *repoFake) SaveIngestReport(_ context.Context, id string, report domain.IngestReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[id] = report
	if doc, ok := f.docs[id]; ok {
		doc.FileHash = report.FileHash
		doc.FragmentsAdded = report.FragmentsAdded
	}
	return nil
}

func (f *repoFake) statuses() []domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DocumentStatus, 0, len(f.statusCalls))
	for _, c := range f.statusCalls {
		out = append(out, c.status)
	}
	return out
}

type storageFake struct {
	files map[string][]byte
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Path(key string) string { return "/data/" + key }

type archiveFake struct {
	keys []string
	body []byte
}

func (f *archiveFake) Archive(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	f.body = raw
	return "s3://bucket/" + key, nil
}

type queueFake struct {
	published []string
}

func (f *queueFake) PublishIngestRequested(_ context.Context, id string) error {
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeIngestRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type eventsFake struct {
	updated []string
}

func (f *eventsFake) PublishIndexUpdated(_ context.Context, ns string) error {
	f.updated = append(f.updated, ns)
	return nil
}

func (f *eventsFake) SubscribeIndexUpdated(context.Context, func(context.Context, string)) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	caps     domain.ExtractorCapabilities
	text     []domain.Fragment
	tables   []domain.Fragment
	err      error
	modes    []domain.ExtractMode
	lastPath string
}

func (f *extractorFake) Capabilities() domain.ExtractorCapabilities { return f.caps }

func (f *extractorFake) Extract(_ context.Context, path string, mode domain.ExtractMode) iter.Seq2[domain.Fragment, error] {
	f.modes = append(f.modes, mode)
	f.lastPath = path
	return func(yield func(domain.Fragment, error) bool) {
		if f.err != nil {
			yield(domain.Fragment{}, f.err)
			return
		}
		src := f.text
		if mode == domain.ExtractTables {
			src = f.tables
		}
		for _, frag := range src {
			if !yield(frag, nil) {
				return
			}
		}
	}
}

// indexFake returns its candidates in order for every search.
type indexFake struct {
	namespace  string
	fragments  []domain.Fragment
	candidates []domain.ScoredFragment
	lastK      int
}

func (f *indexFake) Namespace() string { return f.namespace }
func (f *indexFake) Len() int          { return len(f.fragments) }
func (f *indexFake) Dimension() int    { return 2 }

func (f *indexFake) Search(_ context.Context, _ []float32, k int) ([]domain.ScoredFragment, error) {
	f.lastK = k
	if k < len(f.candidates) {
		return f.candidates[:k], nil
	}
	return f.candidates, nil
}

func (f *indexFake) Fragments() iter.Seq[domain.Fragment] {
	return func(yield func(domain.Fragment) bool) {
		for _, frag := range f.fragments {
			if !yield(frag) {
				return
			}
		}
	}
}

// storeFake keeps the ledger and fragment-ID semantics of the index store without vectors.
type storeFake struct {
	indexes   map[string]*indexFake
	ledgers   map[string][]string
	ingested  [][]domain.Fragment
	loadCalls int
	err       error
}

func newStoreFake() *storeFake {
	return &storeFake{indexes: map[string]*indexFake{}, ledgers: map[string][]string{}}
}

func (f *storeFake) LoadOrInit(_ context.Context, ns string) (ports.VectorIndex, bool, error) {
	f.loadCalls++
	ix, ok := f.indexes[ns]
	if !ok {
		return nil, false, nil
	}
	return ix, true, nil
}

func (f *storeFake) Ingest(_ context.Context, ns string, fragments []domain.Fragment, sourcePath string) (ports.VectorIndex, domain.IngestReport, error) {
	report := domain.IngestReport{Namespace: ns, FileHash: sourcePath}
	if f.err != nil {
		return nil, report, f.err
	}
	f.ingested = append(f.ingested, fragments)
	ix, ok := f.indexes[ns]
	if !ok {
		if len(fragments) == 0 {
			return nil, report, domain.ErrNoDocuments
		}
		ix = &indexFake{namespace: ns}
		report.Created = true
	}
	for _, h := range f.ledgers[ns] {
		if h == sourcePath {
			report.Skipped = true
			report.FragmentsTotal = ix.Len()
			return ix, report, nil
		}
	}
	next := &indexFake{namespace: ns, fragments: append([]domain.Fragment(nil), ix.fragments...)}
	for _, frag := range fragments {
		dup := false
		for _, have := range next.fragments {
			if have.ID == frag.ID {
				dup = true
				break
			}
		}
		if !dup {
			next.fragments = append(next.fragments, frag)
			next.candidates = append(next.candidates, domain.ScoredFragment{Fragment: frag, Vector: []float32{1, 0}, Score: 0.9})
			report.FragmentsAdded++
		}
	}
	f.indexes[ns] = next
	f.ledgers[ns] = append(f.ledgers[ns], sourcePath)
	report.FragmentsTotal = next.Len()
	return next, report, nil
}

func (f *storeFake) Stats(_ context.Context, ns string) (domain.IndexStats, error) {
	ix, ok := f.indexes[ns]
	if !ok {
		return domain.IndexStats{Namespace: ns}, nil
	}
	return domain.IndexStats{Namespace: ns, Exists: true, Fragments: ix.Len(), Files: len(f.ledgers[ns]), Dimension: 2}, nil
}

type embedderFake struct {
	queries  []string
	queryCtx context.Context
	err      error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, f.err
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	f.queryCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

// chatFake follows the system contract: it answers only when the context contains keyword.
type chatFake struct {
	keyword  string
	reply    string
	err      error
	requests []ports.ChatRequest
}

func (f *chatFake) Complete(_ context.Context, req ports.ChatRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if f.keyword != "" && !strings.Contains(contextOf(req.Prompt), f.keyword) {
		return InsufficientAnswer, nil
	}
	return f.reply, nil
}

func contextOf(prompt string) string {
	start := strings.Index(prompt, "<context>")
	end := strings.Index(prompt, "</context>")
	if start < 0 || end < start {
		return ""
	}
	return prompt[start+len("<context>") : end]
}

// wordTokens counts whitespace-separated words.
type wordTokens struct{}

func (wordTokens) Estimate(text string) int { return len(strings.Fields(text)) }

type catalogFake struct {
	known map[string]bool
}

func newCatalogFake(ids ...string) *catalogFake {
	known := map[string]bool{}
	for _, id := range ids {
		known[id] = true
	}
	return &catalogFake{known: known}
}

func (f *catalogFake) Resolve(ns string) (domain.Namespace, error) {
	if !f.known[ns] {
		return domain.Namespace{}, domain.WrapError(domain.ErrNamespaceNotFound, "resolve namespace", errors.New(ns))
	}
	return domain.Namespace{ID: ns, Title: ns}, nil
}

func (f *catalogFake) List(context.Context) ([]domain.NamespaceSummary, error) {
	return nil, nil
}

func textFragment(content string, meta map[string]string) domain.Fragment {
	if meta == nil {
		meta = map[string]string{}
	}
	if _, ok := meta[domain.MetaSource]; !ok {
		meta[domain.MetaSource] = "relatorio.pdf"
	}
	return domain.Fragment{Content: content, Kind: domain.KindText, Metadata: meta}
}
