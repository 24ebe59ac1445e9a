package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/service"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(service.DateLayout, raw)
	if err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid date", map[string]string{key: "use YYYY-MM-DD"})
	}
	return &t, nil
}

// formUpload reads a multipart file field into a seekable upload. A missing field yields an
// empty upload so the service can report it alongside its other checks.
func formUpload(c *gin.Context, field string) (service.DocumentUpload, func(), error) {
	noop := func() {}
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return service.DocumentUpload{}, noop, nil
	}
	src, err := fileHeader.Open()
	if err != nil {
		return service.DocumentUpload{}, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	closeFn := func() { _ = src.Close() }

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		closeFn()
		if readErr != nil {
			return service.DocumentUpload{}, noop, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
		}
		return service.DocumentUpload{Filename: fileHeader.Filename, Size: int64(len(buf)), Content: bytes.NewReader(buf)}, noop, nil
	}
	return service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  reader,
	}, closeFn, nil
}
