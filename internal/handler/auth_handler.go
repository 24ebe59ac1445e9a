package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string, actor *models.JWTClaims) error
	ChangePassword(ctx context.Context, actor *models.JWTClaims, req models.ChangePasswordRequest) error
}

// AuthHandler covers session endpoints plus the caller's password and permissions.
type AuthHandler struct {
	auth authService
}

func NewAuthHandler(auth authService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login godoc
// @Summary Sign in
// @Description Identifier is an e-mail address or NIP. Repeated failures lock the identifier for a while.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}
	req.IP, req.UserAgent = c.ClientIP(), c.Request.UserAgent()
	h.writePair(c)(h.auth.Login(c.Request.Context(), req))
}

// Refresh godoc
// @Summary Rotate tokens
// @Description The presented refresh token is revoked and a new pair is issued
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid refresh payload"))
		return
	}
	req.IP, req.UserAgent = c.ClientIP(), c.Request.UserAgent()
	h.writePair(c)(h.auth.RefreshToken(c.Request.Context(), req))
}

func (h *AuthHandler) writePair(c *gin.Context) func(*models.TokenPair, error) {
	return func(pair *models.TokenPair, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, pair, nil)
	}
}

// Logout godoc
// @Summary Sign out
// @Description Revokes the given refresh token; it must belong to the caller
// @Tags Authentication
// @Accept json
// @Security BearerAuth
// @Param payload body logoutRequest true "Refresh token"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "refresh token required"))
		return
	}
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change own password
// @Description Other sessions of the caller are signed out
// @Tags Profile
// @Accept json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Old and new password"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /me/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid password payload"))
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), claims, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Permissions godoc
// @Summary Actions available to the caller
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/permissions [get]
func (h *AuthHandler) Permissions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"role":    claims.Role,
		"actions": authz.Actions(claims.Role),
	}, nil)
}
