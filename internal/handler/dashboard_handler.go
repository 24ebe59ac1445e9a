package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummary, bool, error)
}

// DashboardHandler serves the landing summary for each role.
type DashboardHandler struct {
	service dashboardService
}

func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Role scoped dashboard
// @Description Counts by status, type and province plus expiry figures, scoped to what the caller may see
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil)
}
