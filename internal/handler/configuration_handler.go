package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type configurationService interface {
	List(ctx context.Context) ([]dto.Setting, error)
	Get(ctx context.Context, key string) (*dto.Setting, error)
	Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*dto.Setting, error)
	BulkUpdate(ctx context.Context, req dto.BulkSettingsRequest, actor *models.JWTClaims) ([]dto.Setting, error)
}

// ConfigurationHandler serves the administrator settings screen.
type ConfigurationHandler struct {
	settings configurationService
}

func NewConfigurationHandler(settings configurationService) *ConfigurationHandler {
	return &ConfigurationHandler{settings: settings}
}

// List godoc
// @Summary List system settings
// @Description Every known key is returned; unset keys carry their default and isDefault=true
// @Tags Configuration
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /configuration [get]
func (h *ConfigurationHandler) List(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil, gin.H{"count": len(settings)})
}

// Get godoc
// @Summary Get one system setting
// @Tags Configuration
// @Produce json
// @Security BearerAuth
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /configuration/{key} [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// Update godoc
// @Summary Change one system setting
// @Description The value is checked against the key's type before it is stored and audited
// @Tags Configuration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Setting key"
// @Param payload body dto.SettingValueRequest true "New value"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /configuration/{key} [put]
func (h *ConfigurationHandler) Update(c *gin.Context) {
	var body dto.SettingValueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalidPayload(err, "invalid setting payload"))
		return
	}
	setting, err := h.settings.Update(c.Request.Context(), c.Param("key"), body.Value, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// BulkUpdate godoc
// @Summary Change several settings at once
// @Description Nothing is written when any item fails validation
// @Tags Configuration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkSettingsRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /configuration/bulk [put]
func (h *ConfigurationHandler) BulkUpdate(c *gin.Context) {
	var body dto.BulkSettingsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalidPayload(err, "invalid bulk settings payload"))
		return
	}
	settings, err := h.settings.BulkUpdate(c.Request.Context(), body, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil, gin.H{"count": len(settings)})
}
