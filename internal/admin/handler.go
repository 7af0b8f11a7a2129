package admin

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/profiles"
	"skinscan-backend/internal/scans"
	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/shared/server/respond"
	"skinscan-backend/internal/shared/telemetry"
	"skinscan-backend/internal/users"
)

// CredentialStore removes local credentials for a deleted account.
type CredentialStore interface {
	Delete(ctx context.Context, userID string) error
}

// Handler serves the administrative surface.
type Handler struct {
	Profiles    *profiles.Service
	Scans       scans.Repo
	Credentials CredentialStore
	Now         func() time.Time
}

func NewHandler(profileSvc *profiles.Service, scanRepo scans.Repo, creds CredentialStore) *Handler {
	return &Handler{Profiles: profileSvc, Scans: scanRepo, Credentials: creds}
}

// RegisterRoutes attaches /admin routes to an authenticated group and guards
// them with RequireAdmin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/admin", RequireAdmin(h.Profiles))
	g.GET("/stats", h.stats)
	g.GET("/users", h.listUsers)
	g.GET("/scans", h.listScans)
	g.DELETE("/users/:id", h.deleteUser)
	g.DELETE("/scans/:id", h.deleteScan)
	g.PUT("/users/:id/role", h.updateRole)
}

type statsResponse struct {
	TotalUsers      int     `json:"totalUsers"`
	TotalScans      int     `json:"totalScans"`
	TotalIssues     int     `json:"totalIssues"`
	UsersToday      int     `json:"usersToday"`
	ScansToday      int     `json:"scansToday"`
	AvgScansPerUser float64 `json:"avgScansPerUser"`
}

type userView struct {
	profiles.Profile
	ScanCount int `json:"scanCount"`
}

type scanView struct {
	scans.Scan
	HasImage  bool   `json:"hasImage"`
	UserEmail string `json:"userEmail"`
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	today := startOfDay(h.now())

	totalUsers, err := h.Profiles.Count(ctx, time.Time{})
	if err != nil {
		h.internal(c, "Failed to fetch stats", err)
		return
	}
	usersToday, err := h.Profiles.Count(ctx, today)
	if err != nil {
		h.internal(c, "Failed to fetch stats", err)
		return
	}
	all, err := h.Scans.Count(ctx, scans.ListFilter{})
	if err != nil {
		h.internal(c, "Failed to fetch stats", err)
		return
	}
	todays, err := h.Scans.Count(ctx, scans.ListFilter{Since: today})
	if err != nil {
		h.internal(c, "Failed to fetch stats", err)
		return
	}

	respond.OK(c, statsResponse{
		TotalUsers:      totalUsers,
		TotalScans:      all.Scans,
		TotalIssues:     all.Issues,
		UsersToday:      usersToday,
		ScansToday:      todays.Scans,
		AvgScansPerUser: averagePerUser(all.Scans, totalUsers),
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.Profiles.List(ctx)
	if err != nil {
		h.internal(c, "Failed to fetch users", err)
		return
	}
	counts, err := h.Scans.CountByUser(ctx)
	if err != nil {
		h.internal(c, "Failed to fetch users", err)
		return
	}

	out := make([]userView, 0, len(list))
	for _, p := range list {
		out = append(out, userView{Profile: p, ScanCount: counts[p.ID]})
	}
	respond.OK(c, gin.H{"users": out})
}

func (h *Handler) listScans(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.Scans.List(ctx, scans.ListFilter{})
	if err != nil {
		h.internal(c, "Failed to fetch scans", err)
		return
	}
	list, err := h.Profiles.List(ctx)
	if err != nil {
		h.internal(c, "Failed to fetch scans", err)
		return
	}
	emails := make(map[string]string, len(list))
	for _, p := range list {
		emails[p.ID] = p.Email
	}

	out := make([]scanView, 0, len(all))
	for _, s := range all {
		out = append(out, scanView{Scan: s, HasImage: s.HasImage(), UserEmail: emails[s.UserID]})
	}
	respond.OK(c, gin.H{"scans": out})
}

func (h *Handler) deleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	targetID := c.Param("id")
	if targetID == middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Cannot delete your own account", nil)
		return
	}

	removed, err := h.Scans.DeleteByUser(ctx, targetID)
	if err != nil {
		h.internal(c, "Failed to delete user", err)
		return
	}
	profileErr := h.Profiles.Delete(ctx, targetID)
	if profileErr != nil && !errors.Is(profileErr, profiles.ErrNotFound) {
		h.internal(c, "Failed to delete user", profileErr)
		return
	}
	found := profileErr == nil || removed > 0
	if h.Credentials != nil {
		switch err := h.Credentials.Delete(ctx, targetID); {
		case err == nil:
			found = true
		case errors.Is(err, users.ErrNotFound):
		default:
			h.internal(c, "Failed to delete user", err)
			return
		}
	}
	if !found {
		respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
		return
	}

	telemetry.Info("admin.user_deleted", map[string]any{
		"admin_id":      middleware.UserIDFromContext(c),
		"user_id":       targetID,
		"scans_removed": removed,
	})
	respond.OK(c, gin.H{"success": true, "message": "User deleted successfully"})
}

func (h *Handler) deleteScan(c *gin.Context) {
	scanID := c.Param("id")
	if err := h.Scans.Delete(c.Request.Context(), scanID); err != nil {
		if errors.Is(err, scans.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Scan not found", nil)
			return
		}
		h.internal(c, "Failed to delete scan", err)
		return
	}
	telemetry.Info("admin.scan_deleted", map[string]any{
		"admin_id": middleware.UserIDFromContext(c),
		"scan_id":  scanID,
	})
	respond.OK(c, gin.H{"success": true, "message": "Scan deleted successfully"})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) updateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || !profiles.ValidRole(req.Role) {
		respond.Error(c, http.StatusBadRequest, "validation_error", `Invalid role. Must be "user" or "admin"`, nil)
		return
	}
	targetID := c.Param("id")
	if targetID == middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Cannot change your own role", nil)
		return
	}

	p, err := h.Profiles.SetRole(c.Request.Context(), targetID, req.Role)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
			return
		}
		h.internal(c, "Failed to update role", err)
		return
	}
	telemetry.Info("admin.role_changed", map[string]any{
		"admin_id": middleware.UserIDFromContext(c),
		"user_id":  targetID,
		"role":     req.Role,
	})
	respond.OK(c, gin.H{
		"success": true,
		"message": "User role updated to " + req.Role,
		"user":    p,
	})
}

func (h *Handler) internal(c *gin.Context, message string, err error) {
	telemetry.Error("admin.request_failed", map[string]any{
		"path":  c.FullPath(),
		"error": err,
	})
	respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// averagePerUser rounds to one decimal place.
func averagePerUser(scanCount, userCount int) float64 {
	if userCount == 0 {
		return 0
	}
	return math.Round(float64(scanCount)/float64(userCount)*10) / 10
}
