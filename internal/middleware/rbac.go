package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/policy"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/response"
)

// RequireAction gates a route on the declarative policy table: the caller's
// role must be granted the action. Entity-level constraints (ownership,
// department, lifecycle state) stay with the services.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !policy.Allows(claims.Role, action) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
