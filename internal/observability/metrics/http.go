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

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

const namespace = "psa"

// HTTPServerMetrics holds the API registry: request metrics plus the
// dialogue and retrieval counters recorded by the core.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnsTotal          *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	retrievalDuration   *prometheus.HistogramVec
	retrievalHits       *prometheus.HistogramVec
	catalogReloadsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Dialogue turns by stage transition.",
		},
		[]string{"service", "from", "to"},
	)
	notificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialogue",
			Name:      "notifications_total",
			Help:      "Dispatched notifications by kind and receipt status.",
		},
		[]string{"service", "kind", "status"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds by stage (search, rerank).",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"service", "stage"},
	)
	retrievalHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "hits",
			Help:      "Distribution of returned hits per retrieval call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "stage"},
	)
	catalogReloadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "reloads_total",
			Help:      "Catalog index rebuilds by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		notificationsTotal,
		retrievalDuration,
		retrievalHits,
		catalogReloadsTotal,
	)

	return &HTTPServerMetrics{
		service:             service,
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		turnsTotal:          turnsTotal,
		notificationsTotal:  notificationsTotal,
		retrievalDuration:   retrievalDuration,
		retrievalHits:       retrievalHits,
		catalogReloadsTotal: catalogReloadsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds conversation ids so label cardinality stays bounded.
func normalizePath(path string) string {
	const prefix = "/v1/conversations/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return path
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return prefix + "{conversation_id}" + rest[i:]
	}
	return prefix + "{conversation_id}"
}

func (m *HTTPServerMetrics) RecordTurn(from, to domain.Stage) {
	m.turnsTotal.WithLabelValues(m.service, string(from), string(to)).Inc()
}

func (m *HTTPServerMetrics) RecordNotification(kind domain.NotificationKind, status string) {
	if status == "" {
		status = "unknown"
	}
	m.notificationsTotal.WithLabelValues(m.service, string(kind), status).Inc()
}

func (m *HTTPServerMetrics) RecordRetrieval(stage string, hits int, duration time.Duration) {
	m.retrievalDuration.WithLabelValues(m.service, stage).Observe(duration.Seconds())
	m.retrievalHits.WithLabelValues(m.service, stage).Observe(float64(hits))
}

func (m *HTTPServerMetrics) RecordCatalogReload(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.catalogReloadsTotal.WithLabelValues(m.service, status).Inc()
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
