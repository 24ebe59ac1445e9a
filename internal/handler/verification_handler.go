package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type verificationService interface {
	Pending(ctx context.Context, actor *models.JWTClaims, query service.CertificationQuery) ([]models.CertificationRecord, *models.Pagination, error)
	Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.CertificationRecord, error)
	Reject(ctx context.Context, actor *models.JWTClaims, id, reason string) (*models.CertificationRecord, error)
	BulkApprove(ctx context.Context, actor *models.JWTClaims, ids []string) (*service.BulkApproveResult, error)
	Selection(ctx context.Context, actor *models.JWTClaims) ([]string, error)
	ToggleSelection(ctx context.Context, actor *models.JWTClaims, id string) (bool, []string, error)
	SelectAll(ctx context.Context, actor *models.JWTClaims, query service.CertificationQuery) ([]string, error)
	ClearSelection(ctx context.Context, actor *models.JWTClaims) error
}

// RejectRequest carries the verifier's reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BulkApproveRequest lists the ids to approve; empty means the current selection.
type BulkApproveRequest struct {
	IDs []string `json:"ids"`
}

// ToggleSelectionRequest names one record.
type ToggleSelectionRequest struct {
	ID string `json:"id" binding:"required"`
}

// VerificationHandler exposes the verifier queue.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(svc verificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

// Pending godoc
// @Summary Verification queue
// @Description Records awaiting review; pass status=all to include decided records
// @Tags Verification
// @Produce json
// @Param q query string false "NIP or name contains"
// @Param region query string false "Province or all"
// @Param status query string false "Status, defaults to PENDING"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /verifications/pending [get]
func (h *VerificationHandler) Pending(c *gin.Context) {
	var query service.CertificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid verification query"))
		return
	}
	records, pagination, err := h.service.Pending(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Approve godoc
// @Summary Approve certification
// @Tags Verification
// @Produce json
// @Param id path string true "Certification ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications/{id}/approve [post]
func (h *VerificationHandler) Approve(c *gin.Context) {
	record, err := h.service.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Reject godoc
// @Summary Reject certification
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Certification ID"
// @Param payload body RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications/{id}/reject [post]
func (h *VerificationHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid rejection payload"))
		return
	}
	record, err := h.service.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkApprove godoc
// @Summary Approve several certifications
// @Description Each id is approved independently; records no longer pending are skipped
// @Tags Verification
// @Accept json
// @Produce json
// @Param payload body BulkApproveRequest false "Ids, or empty for the current selection"
// @Success 200 {object} response.Envelope
// @Router /verifications/bulk-approve [post]
func (h *VerificationHandler) BulkApprove(c *gin.Context) {
	var req BulkApproveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err, "invalid bulk approve payload"))
			return
		}
	}
	result, err := h.service.BulkApprove(c.Request.Context(), claimsFromContext(c), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Selection godoc
// @Summary Current selection
// @Tags Verification
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /verifications/selection [get]
func (h *VerificationHandler) Selection(c *gin.Context) {
	ids, err := h.service.Selection(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ids": ids, "count": len(ids)}, nil)
}

// ToggleSelection godoc
// @Summary Toggle one record in the selection
// @Tags Verification
// @Accept json
// @Produce json
// @Param payload body ToggleSelectionRequest true "Record id"
// @Success 200 {object} response.Envelope
// @Router /verifications/selection/toggle [post]
func (h *VerificationHandler) ToggleSelection(c *gin.Context) {
	var req ToggleSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "id is required"))
		return
	}
	selected, ids, err := h.service.ToggleSelection(c.Request.Context(), claimsFromContext(c), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"selected": selected, "ids": ids, "count": len(ids)}, nil)
}

// SelectAll godoc
// @Summary Select every record matching the filter
// @Tags Verification
// @Produce json
// @Param q query string false "NIP or name contains"
// @Param region query string false "Province or all"
// @Success 200 {object} response.Envelope
// @Router /verifications/selection/select-all [post]
func (h *VerificationHandler) SelectAll(c *gin.Context) {
	var query service.CertificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid verification query"))
		return
	}
	ids, err := h.service.SelectAll(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ids": ids, "count": len(ids)}, nil)
}

// ClearSelection godoc
// @Summary Clear the selection
// @Tags Verification
// @Success 204
// @Router /verifications/selection [delete]
func (h *VerificationHandler) ClearSelection(c *gin.Context) {
	if err := h.service.ClearSelection(c.Request.Context(), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
