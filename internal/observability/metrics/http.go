package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	retrievalCandidates  *prometheus.HistogramVec
	retrievalRelaxations *prometheus.HistogramVec
	analyzerTotal        *prometheus.CounterVec
	analyzerDuration     *prometheus.HistogramVec
	analysisTotal        *prometheus.CounterVec
	analysisDuration     *prometheus.HistogramVec
	historyPublishTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hba",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hba",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hba",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hba",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control, by reason.",
		},
		[]string{"service", "reason"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hba",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Candidates surviving the hard filter per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15},
		},
		[]string{"service"},
	)
	retrievalRelaxations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hba",
			Subsystem: "retrieval",
			Name:      "relaxations",
			Help:      "Relaxation steps applied per request.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		},
		[]string{"service"},
	)
	analyzerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hba",
			Subsystem: "analyzer",
			Name:      "runs_total",
			Help:      "Analyzer runs by dimension and outcome.",
		},
		[]string{"service", "dimension", "outcome"},
	)
	analyzerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hba",
			Subsystem: "analyzer",
			Name:      "duration_seconds",
			Help:      "Analyzer duration in seconds by dimension.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "dimension"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hba",
			Subsystem: "analysis",
			Name:      "requests_total",
			Help:      "Completed analysis requests by status.",
		},
		[]string{"service", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hba",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis duration in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 240, 300},
		},
		[]string{"service", "status"},
	)
	historyPublishTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hba",
			Subsystem: "history",
			Name:      "publish_total",
			Help:      "History publish attempts by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		retrievalCandidates,
		retrievalRelaxations,
		analyzerTotal,
		analyzerDuration,
		analysisTotal,
		analysisDuration,
		historyPublishTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		service:              service,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		rejectedTotal:        rejectedTotal,
		retrievalCandidates:  retrievalCandidates,
		retrievalRelaxations: retrievalRelaxations,
		analyzerTotal:        analyzerTotal,
		analyzerDuration:     analyzerDuration,
		analysisTotal:        analysisTotal,
		analysisDuration:     analysisDuration,
		historyPublishTotal:  historyPublishTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(status),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch path {
	case "/health", "/api/health", "/api/analyze", "/api/history", "/api/history/export", "/metrics":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *HTTPServerMetrics) ObserveRetrieval(candidates int, relaxations int) {
	m.retrievalCandidates.WithLabelValues(m.service).Observe(float64(candidates))
	m.retrievalRelaxations.WithLabelValues(m.service).Observe(float64(relaxations))
}

func (m *HTTPServerMetrics) ObserveAnalyzer(dim domain.Dimension, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.analyzerTotal.WithLabelValues(m.service, string(dim), outcome).Inc()
	m.analyzerDuration.WithLabelValues(m.service, string(dim)).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveAnalysis(status string, listings int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.analysisTotal.WithLabelValues(m.service, status).Inc()
	m.analysisDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveHistoryPublish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.historyPublishTotal.WithLabelValues(m.service, status).Inc()
}
