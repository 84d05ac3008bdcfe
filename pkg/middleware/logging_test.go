package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sayedibrahimi/wheaton-course-rating/pkg/logger"
)

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("course-rating", "info", &buf)

	handler := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected generated X-Correlation-ID response header")
	}

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["correlation_id"] == "" {
		t.Error("expected correlation_id in access log")
	}
	if out["path"] != "/api/v1/courses" {
		t.Errorf("path = %v, want /api/v1/courses", out["path"])
	}
	if out["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", out["status"])
	}
}

func TestRequestLogging_EchoesProvidedCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("course-rating", "info", &buf)

	handler := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/reviews/r1", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-abc" {
		t.Errorf("X-Correlation-ID = %q, want corr-abc", got)
	}
	if !strings.Contains(buf.String(), "corr-abc") {
		t.Error("access log should contain the provided correlation ID")
	}
}

func TestRequestLogging_ProbeEndpointsLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	// Logger at info level: debug lines are suppressed.
	l := logger.NewWithWriter("course-rating", "info", &buf)

	handler := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(rec, req)
	}

	if buf.Len() != 0 {
		t.Errorf("probe endpoints should not produce info-level access logs, got: %s", buf.String())
	}

	// A regular route still logs.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	handler.ServeHTTP(rec, req)
	if buf.Len() == 0 {
		t.Error("expected access log for a non-probe route")
	}
}
