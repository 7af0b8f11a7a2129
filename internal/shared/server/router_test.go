package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/admin"
	"skinscan-backend/internal/profiles"
	"skinscan-backend/internal/scans"
	"skinscan-backend/internal/services/health"
	"skinscan-backend/internal/shared/auth"
	"skinscan-backend/internal/shared/config"
	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/users"
	"skinscan-backend/internal/vision"
)

type cannedVision struct{}

func (cannedVision) CompleteVision(context.Context, vision.Input) (vision.Reply, error) {
	return vision.Reply{
		Content:      `{"issues":[],"recommendations":["Use sunscreen"],"overallAssessment":"Healthy","skinType":"normal"}`,
		FinishReason: vision.FinishStop,
	}, nil
}

type routerFixture struct {
	engine *gin.Engine
	token  string
}

func newRouterFixture(t *testing.T, cfg config.Config) routerFixture {
	t.Helper()
	tokens, err := auth.NewJWTManager("router-test-secret", "skinscan", time.Hour)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	scanRepo := scans.NewMemoryRepo()
	profileSvc := profiles.NewService(profiles.NewMemoryRepo(), nil)
	userRepo := users.NewMemoryRepo()
	userSvc := users.NewService(userRepo)
	scanSvc := &scans.Service{Repo: scanRepo, Vision: cannedVision{}, Classifier: scans.NewClassifier()}

	frozen := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	r := NewRouter(RouterDeps{
		Config:      cfg,
		Tokens:      tokens,
		RateLimiter: middleware.NewRateLimiter(func() time.Time { return frozen }),
		Health:      health.NewService(nil),
		Scans:       scans.NewHandler(scanSvc),
		Users:       users.NewHandler(userSvc, tokens, profileSvc),
		Profiles:    profiles.NewHandler(profileSvc),
		Admin:       admin.NewHandler(profileSvc, scanRepo, userRepo),
	})

	token, _, err := tokens.Issue(auth.Identity{UserID: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return routerFixture{engine: r, token: token}
}

func (f routerFixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func testConfig() config.Config {
	return config.Config{
		Env:               "dev",
		CORSAllowOrigin:   []string{"http://localhost:5173"},
		MaxBodyBytes:      1 << 20,
		AnalyzeRatePerMin: 1,
		AnalyzeBurst:      1,
	}
}

func TestPublicRoutes(t *testing.T) {
	f := newRouterFixture(t, testConfig())

	if w := f.do(http.MethodGet, "/api/health", "", false); w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}
	w := f.do(http.MethodGet, "/metrics", "", false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "scan_started_total") {
		t.Fatalf("metrics: unexpected response %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPost, "/api/auth/register", `{"email":"new@example.com","password":"secret1"}`, false); w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newRouterFixture(t, testConfig())

	for _, path := range []string{"/api/scans", "/api/scans/stats", "/api/auth/me", "/api/auth/profile", "/api/admin/stats"} {
		if w := f.do(http.MethodGet, path, "", false); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
	if w := f.do(http.MethodGet, "/api/scans", "", true); w.Code != http.StatusOK {
		t.Fatalf("scans: expected 200, got %d", w.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newRouterFixture(t, testConfig())

	if w := f.do(http.MethodGet, "/api/admin/stats", "", true); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAnalyzeIsRateLimited(t *testing.T) {
	f := newRouterFixture(t, testConfig())
	body := `{"image":"/9j/4AAQ"}`

	if w := f.do(http.MethodPost, "/api/scans/analyze", body, true); w.Code != http.StatusOK {
		t.Fatalf("first analyze: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	w := f.do(http.MethodPost, "/api/scans/analyze", body, true)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second analyze: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if w := f.do(http.MethodGet, "/api/scans", "", true); w.Code != http.StatusOK {
		t.Fatalf("history must not share the analyze bucket, got %d", w.Code)
	}
}

func TestBodyLimitApplies(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 32
	f := newRouterFixture(t, cfg)

	body := `{"image":"` + strings.Repeat("A", 128) + `"}`
	if w := f.do(http.MethodPost, "/api/scans/analyze", body, true); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
