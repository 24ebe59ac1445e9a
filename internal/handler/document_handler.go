package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type documentService interface {
	Accept(ctx context.Context, upload service.DocumentUpload, uploadCtx models.UploadContext, actor *models.JWTClaims) (*models.Document, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Document, error)
	GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, time.Time, error)
	Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.DocumentDownload, error)
}

// DocumentHandler manages certificate document endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload certificate document
// @Description Field officers upload PDF only; other roles may also upload JPG or PNG. Maximum 5 MB.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param context formData string false "CERTIFICATION or OFFICER_CERTIFICATION; defaults by role"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	uploadCtx, err := uploadContextFor(claims, c.PostForm("context"))
	if err != nil {
		response.Error(c, err)
		return
	}

	upload, release, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	doc, err := h.service.Accept(c.Request.Context(), upload, uploadCtx, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceIDKey, doc.ID)
	response.Created(c, doc)
}

// Get godoc
// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	downloadURL, expiresAt, err := h.service.GetDownloadURL(c.Request.Context(), doc.ID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DocumentResponse{
		Document:    *doc,
		DownloadURL: downloadURL,
		ExpiresAt:   expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

func uploadContextFor(claims *models.JWTClaims, requested string) (models.UploadContext, error) {
	requested = strings.ToUpper(strings.TrimSpace(requested))
	if requested == "" {
		if claims.Role == models.RoleFieldOfficer {
			return models.UploadContextOfficerCertification, nil
		}
		return models.UploadContextCertification, nil
	}
	uploadCtx := models.UploadContext(requested)
	if !uploadCtx.Valid() || uploadCtx == models.UploadContextRegistration {
		return "", appErrors.WithFields(appErrors.ErrValidation, "unsupported upload context", map[string]string{"context": "use CERTIFICATION or OFFICER_CERTIFICATION"})
	}
	if uploadCtx == models.UploadContextCertification && !authz.Allows(claims.Role, authz.ActionCertificationViewRegion) && !authz.Allows(claims.Role, authz.ActionCertificationViewAll) {
		return models.UploadContextOfficerCertification, nil
	}
	return uploadCtx, nil
}
