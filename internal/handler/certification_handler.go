package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type certificationService interface {
	Submit(ctx context.Context, actor *models.JWTClaims, req service.SubmitCertificationRequest) (*models.CertificationRecord, error)
	List(ctx context.Context, actor *models.JWTClaims, query service.CertificationQuery) ([]models.CertificationRecord, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.CertificationRecord, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// CertificationHandler exposes certification intake and listing.
type CertificationHandler struct {
	service certificationService
}

// NewCertificationHandler constructs the handler.
func NewCertificationHandler(svc certificationService) *CertificationHandler {
	return &CertificationHandler{service: svc}
}

// List godoc
// @Summary List certifications
// @Description Field officers see their own records, regional officers their province, verifiers and administrators everything
// @Tags Certifications
// @Produce json
// @Param q query string false "NIP or name contains"
// @Param region query string false "Province or all"
// @Param status query string false "PENDING, VERIFIED, REJECTED or all"
// @Param type query string false "Certification type"
// @Param issuedFrom query string false "Issued on or after (YYYY-MM-DD)"
// @Param issuedTo query string false "Issued on or before (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /certifications [get]
func (h *CertificationHandler) List(c *gin.Context) {
	var query service.CertificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid certification query"))
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Submit godoc
// @Summary Submit certification
// @Description Creates a PENDING record. Regional officers may submit for personnel in their province by ownerNip.
// @Tags Certifications
// @Accept json
// @Produce json
// @Param payload body service.SubmitCertificationRequest true "Certification payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /certifications [post]
func (h *CertificationHandler) Submit(c *gin.Context) {
	var req service.SubmitCertificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid certification payload"))
		return
	}
	record, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get certification
// @Tags Certifications
// @Produce json
// @Param id path string true "Certification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certifications/{id} [get]
func (h *CertificationHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete certification
// @Description Owners may delete records that are not yet verified; administrators may delete any
// @Tags Certifications
// @Param id path string true "Certification ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /certifications/{id} [delete]
func (h *CertificationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
