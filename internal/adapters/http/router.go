package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kirillkom/homebuyer-advisor/internal/config"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
	"github.com/kirillkom/homebuyer-advisor/internal/observability/metrics"
)

type Router struct {
	cfg      config.Config
	advisor  ports.HomeAdvisor
	history  ports.HistoryReader
	exporter ports.HistoryExporter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	advisor ports.HomeAdvisor,
	history ports.HistoryReader,
	exporter ports.HistoryExporter,
	metrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		advisor:  advisor,
		history:  history,
		exporter: exporter,
		metrics:  metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: splitOrigins(rt.cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", rt.health)
	r.Get("/api/health", rt.health)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rt.rateLimitMiddleware)
		r.Use(rt.backpressure)
		r.Post("/api/analyze", rt.analyze)
		r.Get("/api/history", rt.listHistory)
		r.Get("/api/history/export", rt.exportHistory)
	})

	var handler http.Handler = r
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName(), handler)
	}
	return handler
}

func (rt *Router) serviceName() string {
	if rt.cfg.ServiceName == "" {
		return "homebuyer-advisor"
	}
	return rt.cfg.ServiceName
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   rt.serviceName(),
		"version":   rt.cfg.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func splitOrigins(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, "*")
	}
	return out
}
