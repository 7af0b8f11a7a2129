package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/shared/server/respond"
	"skinscan-backend/internal/shared/telemetry"
)

// RoleChecker reports whether a user holds the admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin rejects callers without the admin role with 403. It must run
// after middleware.Auth.
func RequireAdmin(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		ok, err := roles.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			telemetry.Error("admin.role_lookup_failed", map[string]any{
				"user_id": userID,
				"error":   err,
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to verify role", nil)
			return
		}
		if !ok {
			respond.Error(c, http.StatusForbidden, "forbidden", "Admin access required", nil)
			return
		}
		c.Next()
	}
}
