package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/shared/server/respond"
	"skinscan-backend/internal/shared/storage/db"
	"skinscan-backend/internal/shared/telemetry"
)

const pingTimeout = 3 * time.Second

// Service reports liveness and storage reachability.
type Service struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewService constructs a new health service. database may be nil when the
// API runs on in-memory repositories.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database}
}

// Status returns a simple health payload.
func (s *Service) Status() gin.H {
	return gin.H{"status": "ok", "timestamp": s.now().UTC().Format(time.RFC3339)}
}

// StorageStatus pings the database. The storage name is "memory" when no
// database is configured.
func (s *Service) StorageStatus(ctx context.Context) (string, error) {
	if s.DB == nil {
		return "memory", nil
	}
	if err := db.Ping(ctx, s.DB, pingTimeout); err != nil {
		return "postgres", err
	}
	return "postgres", nil
}

// RegisterRoutes attaches /health and /db-test.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", s.health)
	rg.GET("/db-test", s.dbTest)
}

func (s *Service) health(c *gin.Context) {
	respond.JSON(c, http.StatusOK, s.Status())
}

func (s *Service) dbTest(c *gin.Context) {
	storage, err := s.StorageStatus(c.Request.Context())
	if err != nil {
		telemetry.Error("health.db_ping_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "Database unreachable", gin.H{"storage": storage})
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"success": true, "storage": storage})
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
