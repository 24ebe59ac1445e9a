package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/models"
)

// AuditRecorder persists an audit entry without failing the request.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

// Audit records an audit entry after successful requests. Routes whose service
// already writes a domain audit entry should not use it.
func Audit(recorder AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims := CurrentUser(c); claims != nil {
			if claims.UserID != "" {
				id := claims.UserID
				entry.ActorID = &id
			}
			entry.ActorNIP = claims.NIP
			entry.ActorRole = string(claims.Role)
		}
		if id, ok := c.Get(AuditResourceIDKey); ok {
			if s, ok := id.(string); ok && s != "" {
				entry.ResourceID = &s
			}
		}

		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		recorder.Record(c.Request.Context(), entry)
	}
}

// AuditResourceIDKey lets a handler name the resource the Audit middleware should record.
const AuditResourceIDKey = "audit_resource_id"
