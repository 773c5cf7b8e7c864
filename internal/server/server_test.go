package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{
		DataDir: t.TempDir(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewDefaults(t *testing.T) {
	s := newTestServer(t)

	if s.Addr() != "127.0.0.1:8321" {
		t.Errorf("Addr = %q, want 127.0.0.1:8321", s.Addr())
	}
	if s.IsRunning() {
		t.Error("IsRunning = true before Start")
	}
	if s.Registry() == nil {
		t.Error("Registry is nil")
	}
}

func TestHealthBeforeStart(t *testing.T) {
	s := newTestServer(t)

	// Health does not require initialization.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d, want 200", rec.Code)
	}
}

func TestRequireInitBeforeStart(t *testing.T) {
	s := newTestServer(t)

	// API routes 503 until Start wires the store and job manager.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/jobs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("jobs list = %d, want 503", rec.Code)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Error == "" {
		t.Error("503 response has no error message")
	}
}

func TestRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	// Unknown paths 404 rather than 503: the mux rejects them before
	// the init middleware runs.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/nonsense", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rec.Code)
	}

	// Wrong method on a known path is rejected.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/jobs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method = %d, want 405", rec.Code)
	}
}
