package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mewerton/universal-system/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal     *prometheus.CounterVec
	ragRetrievalHitTotal *prometheus.CounterVec
	ragNoContextTotal    *prometheus.CounterVec
	ragOversizeTotal     *prometheus.CounterVec
	ragRetrievedChunks   *prometheus.HistogramVec
	ragDuration          *prometheus.HistogramVec
	llmTokensTotal       *prometheus.CounterVec
	ingestTotal          *prometheus.CounterVec
	ingestFragmentsTotal *prometheus.CounterVec
}

const metricsNamespace = "usys"

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total successful answers by namespace.",
		},
		[]string{"service", "namespace"},
	)
	ragRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total answers with at least one retrieved fragment.",
		},
		[]string{"service", "namespace"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total answers without retrieved fragments.",
		},
		[]string{"service", "namespace"},
	)
	ragOversizeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rag",
			Name:      "prompt_oversize_total",
			Help:      "Total prompts estimated above the advisory token limit.",
		},
		[]string{"service", "namespace"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "rag",
			Name:      "retrieved_fragments",
			Help:      "Distribution of fragments placed into the prompt context.",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
		},
		[]string{"service", "namespace"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Answer generation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "namespace"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "prompt_tokens_total",
			Help:      "Estimated prompt tokens sent to the language model.",
		},
		[]string{"service", "namespace"},
	)
	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total ingest calls by namespace and outcome.",
		},
		[]string{"service", "namespace", "outcome"},
	)
	ingestFragmentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "fragments_added_total",
			Help:      "Total novel fragments appended to namespace indexes.",
		},
		[]string{"service", "namespace"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragRetrievalHitTotal,
		ragNoContextTotal,
		ragOversizeTotal,
		ragRetrievedChunks,
		ragDuration,
		llmTokensTotal,
		ingestTotal,
		ingestFragmentsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		ragRequestsTotal:     ragRequestsTotal,
		ragRetrievalHitTotal: ragRetrievalHitTotal,
		ragNoContextTotal:    ragNoContextTotal,
		ragOversizeTotal:     ragOversizeTotal,
		ragRetrievedChunks:   ragRetrievedChunks,
		ragDuration:          ragDuration,
		llmTokensTotal:       llmTokensTotal,
		ingestTotal:          ingestTotal,
		ingestFragmentsTotal: ingestFragmentsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{id}"
	case strings.HasPrefix(path, "/v1/namespaces/"):
		rest := strings.TrimPrefix(path, "/v1/namespaces/")
		_, tail, found := strings.Cut(rest, "/")
		if !found {
			return "/v1/namespaces/{namespace}"
		}
		return "/v1/namespaces/{namespace}/" + tail
	default:
		return path
	}
}

// RecordAnswer observes one successful answer.
func (m *HTTPServerMetrics) RecordAnswer(service, namespace string, result *domain.AnswerResult, duration time.Duration) {
	if result == nil {
		return
	}
	sources := len(result.Sources)
	m.ragRequestsTotal.WithLabelValues(service, namespace).Inc()
	m.ragRetrievedChunks.WithLabelValues(service, namespace).Observe(float64(sources))
	m.ragDuration.WithLabelValues(service, namespace).Observe(duration.Seconds())
	if result.PromptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, namespace).Add(float64(result.PromptTokens))
	}
	if result.Oversized {
		m.ragOversizeTotal.WithLabelValues(service, namespace).Inc()
	}

	if sources > 0 {
		m.ragRetrievalHitTotal.WithLabelValues(service, namespace).Inc()
		return
	}
	m.ragNoContextTotal.WithLabelValues(service, namespace).Inc()
}

// RecordIngest observes one synchronous ingest. A nil report with a nil error is ignored.
func (m *HTTPServerMetrics) RecordIngest(service, namespace string, report *domain.IngestReport, err error) {
	switch {
	case err != nil:
		m.ingestTotal.WithLabelValues(service, namespace, "error").Inc()
	case report == nil:
		return
	default:
		m.ingestTotal.WithLabelValues(service, namespace, string(report.Status())).Inc()
		if report.FragmentsAdded > 0 {
			m.ingestFragmentsTotal.WithLabelValues(service, namespace).Add(float64(report.FragmentsAdded))
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
