package server

import (
	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/admin"
	googleauth "skinscan-backend/internal/auth"
	"skinscan-backend/internal/profiles"
	"skinscan-backend/internal/scans"
	"skinscan-backend/internal/services/health"
	"skinscan-backend/internal/shared/config"
	"skinscan-backend/internal/shared/metrics"
	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/users"
)

const analyzeRateGroup = "analyze"

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are
// skipped.
type RouterDeps struct {
	Config      config.Config
	Tokens      middleware.IdentityResolver
	RateLimiter *middleware.RateLimiter
	Health      *health.Service
	Scans       *scans.Handler
	Users       *users.Handler
	Profiles    *profiles.Handler
	Admin       *admin.Handler
	GoogleAuth  *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	cfg := deps.Config

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.BodyLimit(cfg.MaxBodyBytes),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	if deps.Health != nil {
		deps.Health.RegisterRoutes(api)
	}
	if deps.Users != nil {
		deps.Users.RegisterPublicRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(deps.Tokens))
	if deps.Users != nil {
		deps.Users.RegisterRoutes(protected)
	}
	if deps.Profiles != nil {
		deps.Profiles.RegisterRoutes(protected)
	}
	if deps.Scans != nil {
		deps.Scans.RegisterRoutes(protected, analyzeRateLimit(cfg, deps.RateLimiter))
	}
	if deps.Admin != nil {
		deps.Admin.RegisterRoutes(protected)
	}

	return r
}

// analyzeRateLimit limits model calls per user. A non-positive rate disables
// the limit.
func analyzeRateLimit(cfg config.Config, limiter *middleware.RateLimiter) gin.HandlerFunc {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.AnalyzeRatePerMin > 0 {
		burst := cfg.AnalyzeBurst
		if burst <= 0 {
			burst = 1
		}
		rules[analyzeRateGroup] = middleware.PerMinute(cfg.AnalyzeRatePerMin, burst)
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: analyzeRateGroup,
		Limiter:      limiter,
	})
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
