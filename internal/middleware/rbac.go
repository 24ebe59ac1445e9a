package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supermen-api/internal/authz"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/response"
)

// RequirePermission lets the request through when the caller's role may perform any of actions.
func RequirePermission(actions ...authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, action := range actions {
			if authz.Allows(claims.Role, action) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
