package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// dummyHandler records whether it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type stubResolver map[string]string

func (s stubResolver) ResolveSession(_ context.Context, token string) (string, bool, error) {
	if token == "broken" {
		return "", false, errors.New("store down")
	}
	user, ok := s[token]
	return user, ok, nil
}

func TestLoadSession(t *testing.T) {
	resolver := stubResolver{"tok-alice": "alice"}

	tests := []struct {
		name     string
		cookie   string
		wantCode int
		wantUser string
		wantNext bool
	}{
		{name: "no cookie", wantCode: http.StatusOK, wantNext: true},
		{name: "unknown token", cookie: "nope", wantCode: http.StatusOK, wantNext: true},
		{name: "valid token", cookie: "tok-alice", wantCode: http.StatusOK, wantUser: "alice", wantNext: true},
		{name: "store failure", cookie: "broken", wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &dummyHandler{}
			h := LoadSession(resolver, zap.NewNop())(next)

			req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantCode)
			}
			if next.called != tt.wantNext {
				t.Fatalf("next called = %v; want %v", next.called, tt.wantNext)
			}
			if tt.wantNext {
				if got := GetUserIDFromContext(next.ctx); got != tt.wantUser {
					t.Errorf("context user = %q; want %q", got, tt.wantUser)
				}
			}
		})
	}
}

func TestRequireSession_Rejects(t *testing.T) {
	next := &dummyHandler{}
	rec := httptest.NewRecorder()
	RequireSession(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	if next.called {
		t.Error("did not expect next handler to be called without a session")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "AUTH_REQUIRED" || body["success"] != false {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRequireSession_Allows(t *testing.T) {
	next := &dummyHandler{}
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req = req.WithContext(WithUser(req.Context(), "bob"))
	rec := httptest.NewRecorder()
	RequireSession(next).ServeHTTP(rec, req)

	if !next.called {
		t.Error("expected next handler to be called with a session")
	}
	if got := GetUserIDFromContext(next.ctx); got != "bob" {
		t.Errorf("expected context user 'bob', got '%s'", got)
	}
}

func TestGetUserIDFromContext_Empty(t *testing.T) {
	if got := GetUserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user, got %q", got)
	}
}
