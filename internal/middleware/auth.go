package middleware

import (
	"net/http"

	"license-api/internal/config"
	"license-api/internal/response"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware guards the admin surface with the API key from
// configuration. With no key configured the surface is disabled
// outright instead of being left open.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, response.Error("Missing api_key"))
			c.Abort()
			return
		}

		if config.AppConfig.AdminAPIKey == "" || apiKey != config.AppConfig.AdminAPIKey {
			c.JSON(http.StatusUnauthorized, response.Error("Invalid api_key"))
			c.Abort()
			return
		}

		c.Next()
	}
}
