package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"exportready-backend/internal/shared/auth"
	"exportready-backend/internal/shared/server/respond"
)

const (
	userIDKey     = "userId"
	userRoleKey   = "userRole"
	businessIDKey = "businessId"
)

// Auth validates bearer JWTs and stores the caller identity in context.
// Paths listed in public are served without identity.
func Auth(public ...string) gin.HandlerFunc {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := open[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Set(userRoleKey, claims.Role)
		if claims.BusinessID > 0 {
			c.Set(businessIDKey, claims.BusinessID)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// RoleFromContext fetches the caller role set by the auth middleware.
func RoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userRoleKey)
}

// BusinessIDFromContext fetches the caller's business, or 0 when the token carried none.
func BusinessIDFromContext(c *gin.Context) int64 {
	if c == nil {
		return 0
	}
	return c.GetInt64(businessIDKey)
}
