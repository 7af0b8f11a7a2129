package scans

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the scans service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches scan routes to an authenticated group. Extra
// handlers run in front of the analyze endpoint only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, analyzeMiddleware ...gin.HandlerFunc) {
	analyze := append(append([]gin.HandlerFunc{}, analyzeMiddleware...), h.analyze)
	rg.POST("/scans/analyze", analyze...)
	rg.GET("/scans", h.list)
	rg.GET("/scans/stats", h.stats)
	rg.GET("/scans/:id/image", h.image)
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type analyzeResponse struct {
	Success     bool            `json:"success"`
	Analysis    Report          `json:"analysis"`
	RawAnalysis json.RawMessage `json:"rawAnalysis"`
	ScanID      *string         `json:"scanId"`
	Status      OutcomeState    `json:"status"`
}

type scanView struct {
	Scan
	HasImage bool `json:"hasImage"`
}

type statsResponse struct {
	TotalScans  int        `json:"totalScans"`
	TotalIssues int        `json:"totalIssues"`
	LastScan    *time.Time `json:"lastScan"`
}

func (h *Handler) analyze(c *gin.Context) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		switch {
		case middleware.IsBodyTooLarge(err):
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Image is too large", nil)
			return
		case errors.Is(err, io.EOF):
			// empty body, reported as a missing image below
		default:
			respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid request body", nil)
			return
		}
	}

	result, err := h.Svc.Analyze(c.Request.Context(), AnalysisRequest{
		UserID: middleware.UserIDFromContext(c),
		Image:  body.Image,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "No token provided", nil)
		case errors.Is(err, ErrImageRequired):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Image is required", []map[string]string{
				{"field": "image", "issue": "required"},
			})
		case errors.Is(err, ErrUpstreamUnavailable):
			respond.Error(c, http.StatusInternalServerError, "analysis_failed", ErrUpstreamUnavailable.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to analyze image", nil)
		}
		return
	}

	c.Set(middleware.ScanStatusKey, string(result.Status))
	if result.ScanID != nil {
		c.Set(middleware.ScanIDKey, *result.ScanID)
	}
	respond.OK(c, analyzeResponse{
		Success:     true,
		Analysis:    result.Report,
		RawAnalysis: result.RawAnalysis,
		ScanID:      result.ScanID,
		Status:      result.Status,
	})
}

func (h *Handler) list(c *gin.Context) {
	scans, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "No token provided", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch scans", nil)
		return
	}

	views := make([]scanView, 0, len(scans))
	for _, s := range scans {
		views = append(views, scanView{Scan: s, HasImage: s.HasImage()})
	}
	respond.OK(c, gin.H{"scans": views})
}

func (h *Handler) stats(c *gin.Context) {
	totals, err := h.Svc.Stats(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "No token provided", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch stats", nil)
		return
	}
	respond.OK(c, statsResponse{
		TotalScans:  totals.Scans,
		TotalIssues: totals.Issues,
		LastScan:    totals.LastScan,
	})
}

func (h *Handler) image(c *gin.Context) {
	rc, contentType, err := h.Svc.OpenImage(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "No token provided", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Image not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load image", nil)
		}
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
