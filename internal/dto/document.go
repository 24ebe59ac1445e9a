package dto

import (
	"time"

	"github.com/noah-isme/supermen-api/internal/models"
)

// DocumentResponse enriches document metadata with a signed download URL.
type DocumentResponse struct {
	models.Document
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"downloadExpiresAt"`
}
