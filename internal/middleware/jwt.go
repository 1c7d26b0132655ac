package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kt-lectures/broadcaster/internal/auth"
	"github.com/kt-lectures/broadcaster/pkg/response"
)

const (
	// ContextAdminID is the key for the admin ID in gin context.
	ContextAdminID = "admin_id"
	// ContextAdminRole is the key for the admin role in gin context.
	ContextAdminRole = "admin_role"
	// ContextAdminLogin is the key for the admin login in gin context.
	ContextAdminLogin = "admin_login"
)

// JWT returns a middleware that validates the bearer token and sets admin claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextAdminRole, string(claims.Role))
		c.Set(ContextAdminLogin, claims.Login)
		c.Next()
	}
}
