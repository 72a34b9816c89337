package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSONIncludesService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("advisor-api", "info", "json", &buf)
	logger.Debug("hidden")
	logger.Info("analysis_completed", "listings", 5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %d: %s", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record["service"] != "advisor-api" || record["msg"] != "analysis_completed" || record["listings"] != float64(5) {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("advisor-worker", "debug", "text", &buf)
	logger.Debug("history_ingested", "request_id", "req-1")

	out := buf.String()
	if !strings.Contains(out, "history_ingested") || !strings.Contains(out, "req-1") {
		t.Fatalf("unexpected text output %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("text format must not emit JSON: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING").String() != "WARN" {
		t.Fatalf("unexpected level for WARNING")
	}
	if parseLevel("nonsense").String() != "INFO" {
		t.Fatalf("unexpected default level")
	}
}
