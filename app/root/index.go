package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "User Management API",
		"version": Version,
		"endpoints": gin.H{
			"health": "/api/health",
			"auth":   "/api/auth/*",
			"users":  "/api/users/*",
		},
	})
}
