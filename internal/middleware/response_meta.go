package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/pkg/middleware/requestid"
	"github.com/noah-isme/supermen-api/pkg/response"
)

const cacheHitKey = "cache_hit"

// WithResponseMeta makes every envelope report the request id and processing time.
// It must run after the request id middleware.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Track(c)
		if id := requestid.Value(c); id != "" {
			response.SetMeta(c, "request_id", id)
		}
		c.Next()
	}
}

// SetCacheHit reports whether the payload came from the dashboard cache.
func SetCacheHit(c *gin.Context, hit bool) {
	response.SetMeta(c, cacheHitKey, hit)
}
