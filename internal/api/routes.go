package api

import (
	"license-api/internal/config"
	"license-api/internal/database"
	"license-api/internal/middleware"
	"license-api/internal/services"

	"github.com/gin-gonic/gin"
)

var (
	signatureVerifier *services.SignatureVerifier
	eventDedup        *services.EventDedup
	emailNotifier     *services.EmailNotifier
)

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine) {
	signatureVerifier = services.NewSignatureVerifier(config.AppConfig.WebhookSecret)
	eventDedup = services.NewEventDedup(database.GetRedis())
	emailNotifier = services.NewEmailNotifier()

	// Billing provider webhook (signature-authenticated, no API key)
	webhook := r.Group("/webhook")
	{
		webhook.POST("/billing", BillingWebhookHandler)
	}

	// API route group
	api := r.Group("/api")
	{
		// Entitlement store routes consumed by client installations.
		// The desktop validator treats these as its remote document
		// store; no interpretation of expiry or grace happens here.
		entitlements := api.Group("/entitlements")
		{
			entitlements.GET("/lookup", LookupEntitlement)
			entitlements.GET("/:email", GetEntitlement)
			entitlements.POST("/:email/free", CreateFreeEntitlement)
			entitlements.POST("/:email/claim", ClaimIdentifier)
		}

		// Admin routes (API key required)
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.POST("/entitlements/:email/revoke", RevokeEntitlement)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "license-service",
		})
	})
}
