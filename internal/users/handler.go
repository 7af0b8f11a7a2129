package users

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/shared/auth"
	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/shared/server/respond"
	"skinscan-backend/internal/shared/telemetry"
)

// TokenIssuer mints bearer tokens for an identity.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

// ProfileEnsurer creates the role profile for a new account.
type ProfileEnsurer interface {
	Ensure(ctx context.Context, userID, email string) error
}

type Handler struct {
	Svc      *Service
	Tokens   TokenIssuer
	Profiles ProfileEnsurer
}

func NewHandler(svc *Service, tokens TokenIssuer, profiles ProfileEnsurer) *Handler {
	return &Handler{Svc: svc, Tokens: tokens, Profiles: profiles}
}

// RegisterPublicRoutes attaches routes that need no token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
}

// RegisterRoutes attaches routes behind the auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/logout", h.logout)
	rg.GET("/auth/me", h.me)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid request body", nil)
		return
	}

	user, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidEmail):
			respond.Error(c, http.StatusBadRequest, "validation_error", "A valid email is required", []map[string]string{
				{"field": "email", "issue": "invalid"},
			})
		case errors.Is(err, ErrPasswordTooShort):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Password must be at least 6 characters", []map[string]string{
				{"field": "password", "issue": "too_short"},
			})
		case errors.Is(err, ErrAlreadyExists):
			respond.Error(c, http.StatusConflict, "conflict", "User already exists", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to register user", nil)
		}
		return
	}

	h.ensureProfile(c, user)
	telemetry.Info("auth.registered", map[string]any{"user_id": user.ID})
	respond.JSON(c, http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid request body", nil)
		return
	}

	user, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid email or password", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to sign in", nil)
		return
	}

	token, expiresAt, err := h.Tokens.Issue(auth.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to issue token", nil)
		return
	}

	h.ensureProfile(c, user)
	respond.OK(c, gin.H{
		"message": "Login successful",
		"user":    user,
		"session": sessionResponse{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresAt:   expiresAt,
		},
	})
}

// logout is a no-op server side; tokens are stateless and expire on their own.
func (h *Handler) logout(c *gin.Context) {
	respond.OK(c, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load user", nil)
		return
	}
	respond.OK(c, gin.H{"user": user})
}

func (h *Handler) ensureProfile(c *gin.Context, user User) {
	if h.Profiles == nil {
		return
	}
	if err := h.Profiles.Ensure(c.Request.Context(), user.ID, user.Email); err != nil {
		telemetry.Warn("profile.ensure_failed", map[string]any{
			"user_id": user.ID,
			"error":   err,
		})
	}
}
