package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/service"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type registrationService interface {
	Start(ctx context.Context) (*service.RegistrationSession, error)
	Get(ctx context.Context, id string) (*service.RegistrationSession, error)
	Edit(ctx context.Context, id string, values map[string]string) (*service.RegistrationSession, error)
	Next(ctx context.Context, id string) (*service.RegistrationSession, error)
	Back(ctx context.Context, id string) (*service.RegistrationSession, error)
	AttachCertificate(ctx context.Context, id string, upload service.DocumentUpload) (*service.RegistrationSession, error)
	Submit(ctx context.Context, id, ip, userAgent string) (*service.RegistrationSession, error)
	Discard(ctx context.Context, id string) error
}

// RegistrationHandler exposes the public multi-step registration form.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Start godoc
// @Summary Start registration
// @Description Opens an empty draft on step 1
// @Tags Registration
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Start(c *gin.Context) {
	session, err := h.service.Start(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get registration draft
// @Tags Registration
// @Produce json
// @Param id path string true "Registration session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Edit godoc
// @Summary Edit registration fields
// @Description Stores field values; each edited field's error is cleared
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Registration session ID"
// @Param payload body map[string]string true "Field values keyed by field name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/fields [patch]
func (h *RegistrationHandler) Edit(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		response.Error(c, invalidPayload(err, "invalid registration fields"))
		return
	}
	session, err := h.service.Edit(c.Request.Context(), c.Param("id"), values)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Next godoc
// @Summary Advance registration step
// @Description Validates the current step; on failure the draft with its field errors is returned
// @Tags Registration
// @Produce json
// @Param id path string true "Registration session ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registrations/{id}/next [post]
func (h *RegistrationHandler) Next(c *gin.Context) {
	session, err := h.service.Next(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, session)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Back godoc
// @Summary Return to previous step
// @Tags Registration
// @Produce json
// @Param id path string true "Registration session ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/back [post]
func (h *RegistrationHandler) Back(c *gin.Context) {
	session, err := h.service.Back(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// AttachCertificate godoc
// @Summary Attach supporting certificate
// @Tags Registration
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Registration session ID"
// @Param file formData file true "PDF, JPG or PNG up to 5 MB"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registrations/{id}/certificate [post]
func (h *RegistrationHandler) AttachCertificate(c *gin.Context) {
	upload, release, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	session, err := h.service.AttachCertificate(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Submit godoc
// @Summary Submit registration
// @Description Creates a PENDING personnel account awaiting administrator activation
// @Tags Registration
// @Produce json
// @Param id path string true "Registration session ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/submit [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	session, err := h.service.Submit(c.Request.Context(), c.Param("id"), c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		h.fail(c, err, session)
		return
	}
	response.Created(c, session)
}

// Discard godoc
// @Summary Discard registration draft
// @Tags Registration
// @Param id path string true "Registration session ID"
// @Success 204
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Discard(c *gin.Context) {
	if err := h.service.Discard(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *RegistrationHandler) fail(c *gin.Context, err error, session *service.RegistrationSession) {
	if session != nil {
		response.ErrorWithData(c, err, session)
		return
	}
	response.Error(c, err)
}
