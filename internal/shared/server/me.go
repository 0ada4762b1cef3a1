package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exportready-backend/internal/shared/server/middleware"
	"exportready-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

// meHandler echoes the identity the ownership checks will see.
func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"userId": userID,
		"role":   middleware.RoleFromContext(c),
	}
	if businessID := middleware.BusinessIDFromContext(c); businessID > 0 {
		response["businessId"] = businessID
	}
	respond.OK(c, response)
}
