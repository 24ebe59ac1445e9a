package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type reportServiceMock struct {
	file       *dto.ReportFile
	err        error
	lastFormat dto.ReportFormat
	lastQuery  service.CertificationQuery
}

func (m *reportServiceMock) Certifications(ctx context.Context, actor *models.JWTClaims, format dto.ReportFormat, query service.CertificationQuery) (*dto.ReportFile, error) {
	m.lastFormat = format
	m.lastQuery = query
	return m.file, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerCertificationsCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &reportServiceMock{file: &dto.ReportFile{
		Filename:    "sertifikasi_20240102_030405.csv",
		ContentType: "text/csv",
		Data:        []byte("NIP,Nama\n"),
		RowCount:    3,
	}}
	handler := NewReportHandler(mock)
	c, w := newGinContext(http.MethodGet, "/reports/certifications?format=csv&region=Jawa%20Barat&status=VERIFIED", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "v-1", Role: models.RoleVerifier})

	handler.Certifications(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ReportFormatCSV, mock.lastFormat)
	assert.Equal(t, "Jawa Barat", mock.lastQuery.Region)
	assert.Equal(t, "VERIFIED", mock.lastQuery.Status)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sertifikasi_20240102_030405.csv")
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "NIP,Nama\n", w.Body.String())
}

func TestReportHandlerCertificationsForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{err: appErrors.ErrForbidden})
	c, w := newGinContext(http.MethodGet, "/reports/certifications", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "o-1", Role: models.RoleFieldOfficer})

	handler.Certifications(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
