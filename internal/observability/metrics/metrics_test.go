package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHTTPServerMetricsRecordsPipeline(t *testing.T) {
	m := NewHTTPServerMetrics("advisor-api")
	m.ObserveRetrieval(4, 1)
	m.ObserveAnalyzer(domain.DimensionHazard, "data_unavailable", 20*time.Millisecond)
	m.ObserveAnalysis("ok", 4, time.Second)
	m.ObserveHistoryPublish(errors.New("no responders"))
	m.RecordRejected("rate_limited")

	handler := m.Middleware("advisor-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/history?limit=3", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`hba_analyzer_runs_total{dimension="hazard",outcome="data_unavailable",service="advisor-api"} 1`,
		`hba_analysis_requests_total{service="advisor-api",status="ok"} 1`,
		`hba_history_publish_total{service="advisor-api",status="error"} 1`,
		`hba_http_rejected_total{reason="rate_limited",service="advisor-api"} 1`,
		`hba_http_requests_total{method="GET",path="/api/history",service="advisor-api",status="418"} 1`,
		`hba_http_requests_total{method="GET",path="other",service="advisor-api",status="418"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestWorkerMetricsIngest(t *testing.T) {
	m := NewWorkerMetrics("advisor-worker")
	m.StartIngest()
	m.FinishIngest("advisor-worker", 5*time.Millisecond, nil)
	m.ObserveQueueLag("advisor-worker", -time.Second)

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `hba_worker_history_ingest_total{service="advisor-worker",status="success"} 1`) {
		t.Fatalf("unexpected worker metrics:\n%s", body)
	}
	if !strings.Contains(body, `hba_worker_history_ingest_in_flight{service="advisor-worker"} 0`) {
		t.Fatalf("in-flight gauge not balanced:\n%s", body)
	}
}
