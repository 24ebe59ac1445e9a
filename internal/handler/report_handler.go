package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type reportService interface {
	Certifications(ctx context.Context, actor *models.JWTClaims, format dto.ReportFormat, query service.CertificationQuery) (*dto.ReportFile, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Certifications godoc
// @Summary Export certification report
// @Description Visible certifications matching the filters rendered as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param region query string false "Province or all"
// @Param status query string false "PENDING, VERIFIED, REJECTED or all"
// @Param type query string false "Certification type"
// @Param issuedFrom query string false "Issued on or after (YYYY-MM-DD)"
// @Param issuedTo query string false "Issued on or before (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports/certifications [get]
func (h *ReportHandler) Certifications(c *gin.Context) {
	var query service.CertificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid report query"))
		return
	}
	file, err := h.service.Certifications(c.Request.Context(), claimsFromContext(c), dto.ReportFormat(c.Query("format")), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Total-Count", strconv.Itoa(file.RowCount))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
