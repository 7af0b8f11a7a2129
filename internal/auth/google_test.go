package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newGoogleRouter(svc *GoogleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api"))
	return r
}

func TestStartRedirectsWithState(t *testing.T) {
	svc := NewGoogleService("client-id", "secret", "http://api.local/api/auth/google/callback", "http://ui.local/auth", nil, nil, nil)
	r := newGoogleRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Host != "accounts.google.com" {
		t.Fatalf("unexpected host %q", loc.Host)
	}
	state := loc.Query().Get("state")
	if state == "" || loc.Query().Get("client_id") != "client-id" {
		t.Fatalf("unexpected query %v", loc.Query())
	}
	if !svc.stateStore.consume(state) {
		t.Fatalf("expected state to be stored")
	}
}

func TestStartNotConfigured(t *testing.T) {
	r := newGoogleRouter(NewGoogleService("", "", "", "", nil, nil, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	r := newGoogleRouter(NewGoogleService("id", "secret", "http://cb", "http://ui", nil, nil, nil))

	cases := []string{
		"/api/auth/google/callback",
		"/api/auth/google/callback?state=abc",
		"/api/auth/google/callback?state=unknown&code=xyz",
	}
	for _, path := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestStateStoreSingleUseAndExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newStateStore()
	store.now = func() time.Time { return now }

	store.put("fresh", now.Add(time.Minute))
	store.put("stale", now.Add(-time.Second))

	if !store.consume("fresh") {
		t.Fatalf("expected fresh state to be accepted")
	}
	if store.consume("fresh") {
		t.Fatalf("expected state to be single use")
	}
	if store.consume("stale") {
		t.Fatalf("expected expired state to be rejected")
	}

	store.put("next", now.Add(time.Minute))
	now = now.Add(2 * time.Minute)
	store.put("later", now.Add(time.Minute))
	if _, ok := store.items["next"]; ok {
		t.Fatalf("expected expired entries to be pruned")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://ui.local/auth/callback?from=google", "tok en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("token") != "tok en" || u.Query().Get("from") != "google" {
		t.Fatalf("unexpected url %q", got)
	}

	if _, err := appendToken("", "x"); err == nil {
		t.Fatalf("expected error for empty redirect")
	}
}
