package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"conmouse/internal/config"
)

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	m, err := config.NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// TestStatusEndpoint checks /api/status reports the live snapshot
func TestStatusEndpoint(t *testing.T) {
	s := NewServer(testManager(t), func() Status {
		return Status{
			Device:    "/dev/input/event3",
			Protocol:  "sgr",
			Gating:    "raw-mode",
			Sessions:  2,
			Delivered: 41,
		}
	})

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Device != "/dev/input/event3" || got.Delivered != 41 {
		t.Errorf("unexpected status: %+v", got)
	}
}

// TestStatusRejectsPost checks /api/status is read-only
func TestStatusRejectsPost(t *testing.T) {
	s := NewServer(testManager(t), func() Status { return Status{} })

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// TestConfigRoundTrip checks POST /api/config persists and GET returns it
func TestConfigRoundTrip(t *testing.T) {
	mgr := testManager(t)
	s := NewServer(mgr, func() Status { return Status{} })

	body := `{"general":{"protocol":"normal","grab":true,"api_port":18089}}`
	rec := httptest.NewRecorder()
	s.handleConfig(rec, httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if mgr.Get().General.Protocol != "normal" {
		t.Errorf("protocol = %s after update, want normal", mgr.Get().General.Protocol)
	}

	rec = httptest.NewRecorder()
	s.handleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	var got config.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding config: %v", err)
	}
	if got.General.Protocol != "normal" {
		t.Errorf("returned protocol = %s, want normal", got.General.Protocol)
	}
}

// TestAuthMiddleware checks token enforcement and the health exemption
func TestAuthMiddleware(t *testing.T) {
	s := NewServer(testManager(t), func() Status { return Status{} })
	s.token = "secret"

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := s.authMiddleware(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health should bypass auth: status = %d, want 200", rec.Code)
	}
}
