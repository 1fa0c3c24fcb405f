// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"collectsync-service/internal/auth"
	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Auth validates the bearer token and stashes the claims in the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("staff_id", claims.StaffID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole requires one of the given roles. Must run after Auth().
func (m *AuthMiddleware) RequireRole(roles ...staff.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "authentication required", nil)
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "insufficient permissions", nil)
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Websocket upgrades cannot set headers from the browser.
	return c.Query("token")
}

// GetStaffID returns the authenticated staff id from the context.
func GetStaffID(c *gin.Context) (string, bool) {
	v, ok := c.Get("staff_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetRole returns the authenticated role from the context.
func GetRole(c *gin.Context) (staff.Role, bool) {
	v, ok := c.Get("role")
	if !ok {
		return "", false
	}
	role, ok := v.(staff.Role)
	return role, ok
}
