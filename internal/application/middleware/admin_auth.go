package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/bivex/subscription-renewals/internal/interfaces/http/response"
)

// Operator roles
const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
)

// AdminMiddleware ensures the authenticated operator is an admin. It must run after Authenticate.
func AdminMiddleware() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

// RequireRole rejects operators whose token role is not one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyOperatorID) == "" {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		role := c.GetString(ContextKeyRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		response.Forbidden(c, "Insufficient role")
		c.Abort()
	}
}
