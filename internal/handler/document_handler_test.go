package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type documentServiceMock struct {
	doc          *models.Document
	err          error
	download     *service.DocumentDownload
	lastCtx      models.UploadContext
	lastFilename string
	lastToken    string
}

func (m *documentServiceMock) Accept(ctx context.Context, upload service.DocumentUpload, uploadCtx models.UploadContext, actor *models.JWTClaims) (*models.Document, error) {
	m.lastCtx = uploadCtx
	m.lastFilename = upload.Filename
	return m.doc, m.err
}

func (m *documentServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Document, error) {
	return m.doc, m.err
}

func (m *documentServiceMock) GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, time.Time, error) {
	return "/api/v1/documents/" + id + "/download?token=abc", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), nil
}

func (m *documentServiceMock) Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.DocumentDownload, error) {
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.download, nil
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, _ = part.Write(content)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestDocumentHandlerUploadDefaultsContextByRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &documentServiceMock{doc: &models.Document{ID: "doc-1", Context: models.UploadContextOfficerCertification}}
	handler := NewDocumentHandler(mock)

	body, contentType := multipartUpload(t, nil, "ijazah.pdf", []byte("%PDF-1.4"))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/documents", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "o-1", Role: models.RoleFieldOfficer})

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.UploadContextOfficerCertification, mock.lastCtx)
	assert.Equal(t, "ijazah.pdf", mock.lastFilename)
	resourceID, ok := c.Get(middleware.AuditResourceIDKey)
	require.True(t, ok)
	assert.Equal(t, "doc-1", resourceID)
}

func TestDocumentHandlerUploadRejectsRegistrationContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(&documentServiceMock{})

	body, contentType := multipartUpload(t, map[string]string{"context": "registration"}, "a.pdf", []byte("%PDF"))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/documents", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "a-1", Role: models.RoleAdmin})

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadContextFor(t *testing.T) {
	cases := []struct {
		name      string
		role      models.UserRole
		requested string
		want      models.UploadContext
		wantErr   bool
	}{
		{name: "officer default", role: models.RoleFieldOfficer, want: models.UploadContextOfficerCertification},
		{name: "verifier default", role: models.RoleVerifier, want: models.UploadContextCertification},
		{name: "officer cannot widen", role: models.RoleFieldOfficer, requested: "CERTIFICATION", want: models.UploadContextOfficerCertification},
		{name: "regional keeps certification", role: models.RoleRegionalOfficer, requested: "certification", want: models.UploadContextCertification},
		{name: "unknown", role: models.RoleAdmin, requested: "AVATAR", wantErr: true},
		{name: "registration", role: models.RoleAdmin, requested: "REGISTRATION", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := uploadContextFor(&models.JWTClaims{Role: tc.role}, tc.requested)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDocumentHandlerGetIncludesDownloadURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(&documentServiceMock{doc: &models.Document{ID: "doc-7", OriginalName: "a.pdf"}})
	c, w := newGinContext(http.MethodGet, "/documents/doc-7", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-7"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "v-1", Role: models.RoleVerifier})

	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/documents/doc-7/download?token=abc")
}

func TestDocumentHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 content"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mock := &documentServiceMock{download: &service.DocumentDownload{
		File:      file,
		Filename:  "sertifikat.pdf",
		MimeType:  "application/pdf",
		SizeBytes: int64(len("%PDF-1.4 content")),
	}}
	handler := NewDocumentHandler(mock)
	c, w := newGinContext(http.MethodGet, "/documents/doc-1/download?token=signed", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "v-1", Role: models.RoleVerifier})

	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "signed", mock.lastToken)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sertifikat.pdf")
	assert.Equal(t, "%PDF-1.4 content", w.Body.String())
}

func TestDocumentHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(&documentServiceMock{})
	c, w := newGinContext(http.MethodGet, "/documents/doc-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "v-1", Role: models.RoleVerifier})

	handler.Download(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
