package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantOrigin string
	}{
		{name: "disabled passes through", origin: "https://a.example", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "allowed origin echoed", allowed: []string{"https://a.example/"}, origin: "https://a.example", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://a.example"},
		{name: "preflight allowed", allowed: []string{"https://a.example"}, origin: "https://a.example", method: http.MethodOptions, wantStatus: http.StatusNoContent, wantOrigin: "https://a.example"},
		{name: "preflight rejected", allowed: []string{"https://a.example"}, origin: "https://evil.example", method: http.MethodOptions, wantStatus: http.StatusForbidden},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://b.example", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "*"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/predict", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			WithCORS(tc.allowed, next).ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("allow origin = %q, want %q", got, tc.wantOrigin)
			}
		})
	}
}
