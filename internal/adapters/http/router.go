// Package httpadapter exposes namespace ingestion, questions and table export over HTTP.
package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mewerton/universal-system/internal/config"
	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/core/usecase"
	"github.com/mewerton/universal-system/internal/observability/metrics"
)

const (
	serviceName   = "api"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	multipartMem  = 8 << 20
)

type Dependencies struct {
	Uploader  ports.DocumentUploader
	Documents ports.DocumentReader
	Catalog   ports.NamespaceCatalog
	Exporter  ports.TableExporter
	Sessions  *usecase.SessionRegistry
	Metrics   *metrics.HTTPServerMetrics
	Logger    *slog.Logger
}

type Router struct {
	deps   Dependencies
	logger *slog.Logger

	maxUploadBytes  int64
	rateLimitRPS    float64
	rateLimitBurst  int
	maxInFlight     int
	backpressureTTL time.Duration
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.APIMaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	return &Router{
		deps:            deps,
		logger:          logger,
		maxUploadBytes:  maxUpload,
		rateLimitRPS:    cfg.APIRateLimitRPS,
		rateLimitBurst:  cfg.APIRateLimitBurst,
		maxInFlight:     cfg.APIBackpressureMaxInFly,
		backpressureTTL: cfg.APIBackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}
	mux.HandleFunc("GET /v1/namespaces", rt.listNamespaces)
	mux.HandleFunc("POST /v1/namespaces/{namespace}/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/namespaces/{namespace}/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/namespaces/{namespace}/query", rt.query)
	mux.HandleFunc("GET /v1/namespaces/{namespace}/tables.xlsx", rt.exportTables)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureTTL)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type uploadResponse struct {
	Document *domain.Document     `json:"document"`
	Report   *domain.IngestReport `json:"report,omitempty"`
}

type queryRequest struct {
	Question string `json:"question"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listNamespaces(w http.ResponseWriter, r *http.Request) {
	list, err := rt.deps.Catalog.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"namespaces": list})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	session := rt.session(w, r)

	// Unknown namespaces stop here so metric labels stay within the catalog.
	if _, err := rt.deps.Catalog.Resolve(namespace); err != nil {
		rt.writeError(w, r, err)
		return
	}

	async := false
	if raw := r.URL.Query().Get("async"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse async flag", err))
			return
		}
		async = parsed
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:     "Arquivo excede o tamanho máximo permitido.",
				RequestID: requestIDFromContext(r.Context()),
			})
			return
		}
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse multipart", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read multipart", fmt.Errorf("multipart field 'file' is required: %w", err)))
		return
	}
	defer file.Close()

	out, err := rt.deps.Uploader.Upload(r.Context(), ports.UploadRequest{
		Namespace: namespace,
		Filename:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Body:      file,
		Async:     async,
	})
	if !async && rt.deps.Metrics != nil {
		var report *domain.IngestReport
		if out != nil {
			report = out.Report
		}
		rt.deps.Metrics.RecordIngest(serviceName, namespace, report, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	if out.Answerer != nil {
		session.Bind(out.Answerer)
	}
	status := http.StatusCreated
	if async {
		status = http.StatusAccepted
	}
	writeJSON(w, status, uploadResponse{Document: out.Document, Report: out.Report})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	if _, err := rt.deps.Catalog.Resolve(namespace); err != nil {
		rt.writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse limit", fmt.Errorf("limit=%q", raw)))
			return
		}
		limit = n
	}
	docs, err := rt.deps.Documents.ListByNamespace(r.Context(), namespace, limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.deps.Documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	session := rt.session(w, r)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode query", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode query", errors.New("question is required")))
		return
	}
	if _, err := rt.deps.Catalog.Resolve(namespace); err != nil {
		rt.writeError(w, r, err)
		return
	}

	start := time.Now()
	result, err := session.Ask(r.Context(), namespace, req.Question)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordAnswer(serviceName, namespace, result, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) exportTables(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")

	var buf bytes.Buffer
	if _, err := rt.deps.Exporter.ExportTables(r.Context(), namespace, &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-tabelas.xlsx"`, namespace))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// session resolves the caller's session and echoes its id so clients can keep it.
func (rt *Router) session(w http.ResponseWriter, r *http.Request) *usecase.Session {
	s := rt.deps.Sessions.Session(r.Header.Get(sessionIDHeader))
	w.Header().Set(sessionIDHeader, s.ID())
	return s
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "request_id", requestID, "path", r.URL.Path, "status", status, "error", err)
	} else {
		rt.logger.Debug("request_rejected", "request_id", requestID, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: mapErrorToMessage(err), RequestID: requestID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
