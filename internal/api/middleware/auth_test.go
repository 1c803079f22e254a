package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/logtower/logtower/internal/auth"
)

func newAuthSetup(t *testing.T) (*auth.Service, http.Handler) {
	t.Helper()
	svc := auth.NewService(&auth.Config{
		Secret:      []byte("test-secret-that-is-long-enough-0000"),
		TokenExpiry: time.Hour,
	}, nil)

	m := NewAuthMiddleware(svc, slog.Default())
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetSubject(r.Context())))
	}))
	return svc, handler
}

func TestAuthenticateWithHeader(t *testing.T) {
	svc, handler := newAuthSetup(t)
	token, err := svc.GenerateToken("dashboard")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "dashboard" {
		t.Errorf("subject = %q", rec.Body.String())
	}
}

func TestAuthenticateWithQueryParam(t *testing.T) {
	svc, handler := newAuthSetup(t)
	token, err := svc.GenerateToken("agent-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/logs?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "agent-1" {
		t.Errorf("subject = %q", rec.Body.String())
	}
}

func TestAuthenticateRejectsMissingOrBadToken(t *testing.T) {
	_, handler := newAuthSetup(t)

	for _, target := range []string{"/logs", "/logs?token=garbage"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want 401", target, rec.Code)
		}
	}
}
