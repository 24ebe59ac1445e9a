package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type personnelService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.PersonnelFilter) ([]models.Personnel, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Personnel, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreatePersonnelRequest) (*models.Personnel, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.UpdatePersonnelRequest) (*models.Personnel, error)
	Activate(ctx context.Context, actor *models.JWTClaims, id string) (*models.Personnel, error)
	Deactivate(ctx context.Context, actor *models.JWTClaims, id string) (*models.Personnel, error)
	ResetPassword(ctx context.Context, actor *models.JWTClaims, id string) error
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	Me(ctx context.Context, actor *models.JWTClaims) (*models.Personnel, error)
	UpdateSelf(ctx context.Context, actor *models.JWTClaims, req service.UpdateSelfRequest) (*models.Personnel, error)
}

// PersonnelHandler handles personnel administration and self service endpoints.
type PersonnelHandler struct {
	service personnelService
}

// NewPersonnelHandler creates a new personnel handler.
func NewPersonnelHandler(svc personnelService) *PersonnelHandler {
	return &PersonnelHandler{service: svc}
}

// List godoc
// @Summary List personnel
// @Description Administrators see everyone; regional officers see their own province
// @Tags Personnel
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param status query string false "Status filter (PENDING, ACTIVE, INACTIVE)"
// @Param province query string false "Province filter"
// @Param search query string false "NIP, name or e-mail"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /personnel [get]
func (h *PersonnelHandler) List(c *gin.Context) {
	filter := models.PersonnelFilter{
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		Province:  strings.TrimSpace(c.Query("province")),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(strings.ToUpper(role))
		filter.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := models.PersonnelStatus(strings.ToUpper(status))
		filter.Status = &s
	}

	people, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, people, pagination)
}

// Get godoc
// @Summary Get personnel
// @Tags Personnel
// @Produce json
// @Param id path string true "Personnel ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /personnel/{id} [get]
func (h *PersonnelHandler) Get(c *gin.Context) {
	person, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, person, nil)
}

// Create godoc
// @Summary Create personnel
// @Description Without a password a temporary one is generated and delivered by notification
// @Tags Personnel
// @Accept json
// @Produce json
// @Param payload body service.CreatePersonnelRequest true "Create personnel payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /personnel [post]
func (h *PersonnelHandler) Create(c *gin.Context) {
	var req service.CreatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}

	person, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, person)
}

// Update godoc
// @Summary Update personnel
// @Tags Personnel
// @Accept json
// @Produce json
// @Param id path string true "Personnel ID"
// @Param payload body service.UpdatePersonnelRequest true "Update personnel payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /personnel/{id} [put]
func (h *PersonnelHandler) Update(c *gin.Context) {
	var req service.UpdatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}

	person, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, person, nil)
}

// Activate godoc
// @Summary Activate personnel
// @Description Accounts created through registration receive a temporary password on first activation
// @Tags Personnel
// @Produce json
// @Param id path string true "Personnel ID"
// @Success 200 {object} response.Envelope
// @Router /personnel/{id}/activate [post]
func (h *PersonnelHandler) Activate(c *gin.Context) {
	person, err := h.service.Activate(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, person, nil)
}

// Deactivate godoc
// @Summary Deactivate personnel
// @Tags Personnel
// @Produce json
// @Param id path string true "Personnel ID"
// @Success 200 {object} response.Envelope
// @Router /personnel/{id}/deactivate [post]
func (h *PersonnelHandler) Deactivate(c *gin.Context) {
	person, err := h.service.Deactivate(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, person, nil)
}

// ResetPassword godoc
// @Summary Reset personnel password
// @Tags Personnel
// @Produce json
// @Param id path string true "Personnel ID"
// @Success 202 {object} response.Envelope
// @Router /personnel/{id}/reset-password [post]
func (h *PersonnelHandler) ResetPassword(c *gin.Context) {
	if err := h.service.ResetPassword(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, gin.H{"message": "temporary password sent"})
}

// Delete godoc
// @Summary Delete personnel
// @Description Irreversible
// @Tags Personnel
// @Produce json
// @Param id path string true "Personnel ID"
// @Success 204
// @Router /personnel/{id} [delete]
func (h *PersonnelHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Me godoc
// @Summary Current profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *PersonnelHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	person, err := h.service.Me(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, person, nil)
}

// UpdateMe godoc
// @Summary Update current profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body service.UpdateSelfRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /me [patch]
func (h *PersonnelHandler) UpdateMe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateSelfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}

	person, err := h.service.UpdateSelf(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, person, nil)
}
