package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLog(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := WithRequestID(WithRequestLog("sentiment", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})))
	req := httptest.NewRequest(http.MethodPost, "/predict", nil)
	req.Header.Set("X-Request-Id", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "ERROR" {
		t.Fatalf("expected error level, got %v", entry["level"])
	}
	if entry["status"] != float64(500) || entry["bytes"] != float64(4) {
		t.Fatalf("unexpected status/bytes: %v", entry)
	}
	if entry["request_id"] != "req-1" || entry["service"] != "sentiment" || entry["path"] != "/predict" {
		t.Fatalf("unexpected fields: %v", entry)
	}
}
