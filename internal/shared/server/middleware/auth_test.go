package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/shared/auth"
)

type stubResolver struct {
	ids   map[string]auth.Identity
	calls int
}

func (s *stubResolver) ResolveIdentity(_ context.Context, token string) (auth.Identity, error) {
	s.calls++
	id, ok := s.ids[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

func newAuthRouter(resolver IdentityResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(resolver))
	router.GET("/api/scans", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c), "email": UserEmailFromContext(c)})
	})
	router.OPTIONS("/api/scans", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	resolver := &stubResolver{}
	router := newAuthRouter(resolver)

	req := httptest.NewRequest(http.MethodOptions, "/api/scans", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resolver.calls != 0 {
		t.Fatalf("expected no identity lookup, got %d", resolver.calls)
	}
}

func TestAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	tests := []string{"", "Basic abc", "Bearer", "Bearer    "}
	for _, header := range tests {
		resolver := &stubResolver{}
		router := newAuthRouter(resolver)

		req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
		if resolver.calls != 0 {
			t.Fatalf("header %q: expected no identity lookup", header)
		}
	}
}

func TestAuthRejectsUnresolvableToken(t *testing.T) {
	router := newAuthRouter(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthStoresIdentity(t *testing.T) {
	router := newAuthRouter(&stubResolver{ids: map[string]auth.Identity{
		"good": {UserID: "user-1", Email: "u@example.com"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
	req.Header.Set("Authorization", "bearer good")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != `{"email":"u@example.com","userId":"user-1"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
