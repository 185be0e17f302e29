package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

// RequirePermission returns middleware that checks if the authenticated user
// has a specific permission in their session token. PermissionAdmin passes
// every check.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, exists := c.Get("permissions")
		if !exists {
			abortForbidden(c, "no permissions in context")
			return
		}
		permList, ok := perms.([]string)
		if !ok {
			abortForbidden(c, "invalid permissions type")
			return
		}

		if slices.Contains(permList, PermissionAdmin) || slices.Contains(permList, permission) {
			c.Next()
			return
		}

		abortForbidden(c, "insufficient permissions")
	}
}

func abortForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":    apperrors.CodeForbidden,
		"message": message,
	})
}
