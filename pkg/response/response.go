// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

const (
	metaKey    = "response_meta"
	startedKey = "response_started"
)

// Envelope is the body of every API response. Data and Error may both be set when a
// failed step still returns the resource it was applied to.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Track stamps the request start so envelopes report processing_time_ms.
func Track(c *gin.Context) {
	c.Set(startedKey, time.Now())
}

// SetMeta attaches one meta value to whatever envelope the request writes.
func SetMeta(c *gin.Context, key string, value interface{}) {
	stored, _ := c.Get(metaKey)
	meta, ok := stored.(map[string]interface{})
	if !ok {
		meta = map[string]interface{}{}
		c.Set(metaKey, meta)
	}
	meta[key] = value
}

// JSON writes data with optional pagination; extra meta is merged over request meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, extra ...map[string]interface{}) {
	write(c, status, Envelope{Data: data, Pagination: pagination}, extra...)
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

func Accepted(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data, nil)
}

// Error converts err to an *appErrors.Error and writes it with its status.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Error: appErr})
}

// ErrorWithData writes an error alongside the resource state the client should re-render.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Data: data, Error: appErr})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func write(c *gin.Context, status int, env Envelope, extra ...map[string]interface{}) {
	env.Meta = collectMeta(c, extra)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, env)
}

func collectMeta(c *gin.Context, extra []map[string]interface{}) map[string]interface{} {
	meta := map[string]interface{}{}
	if stored, ok := c.Get(metaKey); ok {
		if m, ok := stored.(map[string]interface{}); ok {
			for k, v := range m {
				meta[k] = v
			}
		}
	}
	if started, ok := c.Get(startedKey); ok {
		if t, ok := started.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(t).Milliseconds()
		}
	}
	for _, m := range extra {
		for k, v := range m {
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
