package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type alertService interface {
	ListRules(ctx context.Context, actor *models.JWTClaims) ([]models.AlertRule, error)
	CreateRule(ctx context.Context, actor *models.JWTClaims, req service.AlertRuleRequest) (*models.AlertRule, error)
	UpdateRule(ctx context.Context, actor *models.JWTClaims, id string, req service.AlertRuleRequest) (*models.AlertRule, error)
	DeleteRule(ctx context.Context, actor *models.JWTClaims, id string) error
	RunNow(ctx context.Context, actor *models.JWTClaims) (*service.AlertRunResult, error)
	Broadcast(ctx context.Context, actor *models.JWTClaims, req service.BroadcastRequest) (int, error)
}

// AlertHandler manages expiry alert rules and broadcasts.
type AlertHandler struct {
	service alertService
}

// NewAlertHandler constructs the handler.
func NewAlertHandler(svc alertService) *AlertHandler {
	return &AlertHandler{service: svc}
}

// ListRules godoc
// @Summary List expiry alert rules
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/rules [get]
func (h *AlertHandler) ListRules(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// CreateRule godoc
// @Summary Create expiry alert rule
// @Tags Alerts
// @Accept json
// @Produce json
// @Param payload body service.AlertRuleRequest true "Rule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /alerts/rules [post]
func (h *AlertHandler) CreateRule(c *gin.Context) {
	var req service.AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid alert rule payload"))
		return
	}
	rule, err := h.service.CreateRule(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// UpdateRule godoc
// @Summary Update expiry alert rule
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body service.AlertRuleRequest true "Rule"
// @Success 200 {object} response.Envelope
// @Router /alerts/rules/{id} [put]
func (h *AlertHandler) UpdateRule(c *gin.Context) {
	var req service.AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid alert rule payload"))
		return
	}
	rule, err := h.service.UpdateRule(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// DeleteRule godoc
// @Summary Delete expiry alert rule
// @Tags Alerts
// @Param id path string true "Rule ID"
// @Success 204
// @Router /alerts/rules/{id} [delete]
func (h *AlertHandler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Run godoc
// @Summary Run every active rule now
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/run [post]
func (h *AlertHandler) Run(c *gin.Context) {
	result, err := h.service.RunNow(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Broadcast godoc
// @Summary Broadcast a system notification
// @Description Sends to every active personnel in a province, or everyone with province=all
// @Tags Alerts
// @Accept json
// @Produce json
// @Param payload body service.BroadcastRequest true "Broadcast"
// @Success 202 {object} response.Envelope
// @Router /alerts/broadcast [post]
func (h *AlertHandler) Broadcast(c *gin.Context) {
	var req service.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid broadcast payload"))
		return
	}
	n, err := h.service.Broadcast(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"recipients": n})
}
