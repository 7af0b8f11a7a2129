package profiles

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches profile routes behind the auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/profile", h.profile)
}

func (h *Handler) profile(c *gin.Context) {
	p, err := h.Svc.GetOrCreate(c.Request.Context(), middleware.UserIDFromContext(c), middleware.UserEmailFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load profile", nil)
		return
	}
	respond.OK(c, gin.H{"profile": p})
}
