package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	})

	r := httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	r.Header.Set(requestIDHeader, "req-1")
	w := httptest.NewRecorder()

	Logger(logger)(next).ServeHTTP(w, r)

	if got := w.Header().Get(requestIDHeader); got != "req-1" {
		t.Fatalf("request id header = %q, want req-1", got)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("status field = %v", fields["status"])
	}
	if fields["path"] != "/api/policies" {
		t.Fatalf("path field = %v", fields["path"])
	}
	if fields["bytes_out"] != int64(3) {
		t.Fatalf("bytes_out field = %v", fields["bytes_out"])
	}
}

func TestLoggerAssignsRequestID(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	Logger(zap.NewNop())(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id header was not set")
	}
}
