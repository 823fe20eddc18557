package api

import (
	"net/http"

	"license-api/internal/database"
	"license-api/internal/models"
	"license-api/internal/response"
	"license-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetEntitlement returns the record for an email.
// GET /api/entitlements/:email
//
// This is a plain store read: expiry and grace interpretation happen in
// the client validator, never here.
func GetEntitlement(c *gin.Context) {
	email := models.NormalizeEmail(c.Param("email"))
	if email == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "email is required")
		return
	}

	record, err := database.GetEntitlementByEmail(email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.ErrorJSON(c, http.StatusNotFound, "entitlement not found")
			return
		}
		logging.Errorf("Failed to read entitlement for %s: %v", email, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "failed to read entitlement")
		return
	}

	database.TouchLastSeen(email)
	response.SuccessJSON(c, record)
}

// CreateFreeEntitlement registers an email as a known free account.
// POST /api/entitlements/:email/free
//
// Explicit and idempotent so the client's "create free record on first
// sync" behavior is a visible store operation, not a read side effect.
func CreateFreeEntitlement(c *gin.Context) {
	email := models.NormalizeEmail(c.Param("email"))
	if email == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "email is required")
		return
	}

	record, err := database.CreateFreeEntitlementIfAbsent(email)
	if err != nil {
		logging.Errorf("Failed to create free record for %s: %v", email, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "failed to create record")
		return
	}

	response.SuccessJSON(c, record)
}

// LookupEntitlement finds the record owning a license or subscription
// identifier.
// GET /api/entitlements/lookup?key=xxx
func LookupEntitlement(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "key is required")
		return
	}

	record, err := database.FindEntitlementByIdentifier(key)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.ErrorJSON(c, http.StatusNotFound, "no entitlement for key")
			return
		}
		logging.Errorf("Failed to look up identifier: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "failed to look up key")
		return
	}

	response.SuccessJSON(c, record)
}

// ClaimIdentifierRequest represents a claim request
type ClaimIdentifierRequest struct {
	Key string `json:"key" binding:"required"`
}

// ClaimIdentifier merges an identifier into the email's record and
// marks it Pro. Called by the fallback resolver after it has verified
// ownership and expiry.
// POST /api/entitlements/:email/claim
func ClaimIdentifier(c *gin.Context) {
	email := models.NormalizeEmail(c.Param("email"))
	if email == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "email is required")
		return
	}

	var req ClaimIdentifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	record, err := database.AttachIdentifier(email, req.Key)
	if err != nil {
		logging.Errorf("Failed to attach identifier for %s: %v", email, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "failed to claim key")
		return
	}

	response.SuccessJSON(c, record)
}

// RevokeEntitlement force-revokes an account (admin only).
// POST /api/admin/entitlements/:email/revoke
func RevokeEntitlement(c *gin.Context) {
	email := models.NormalizeEmail(c.Param("email"))
	if email == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "email is required")
		return
	}

	if _, err := database.GetEntitlementByEmail(email); err != nil {
		if err == gorm.ErrRecordNotFound {
			response.ErrorJSON(c, http.StatusNotFound, "entitlement not found")
			return
		}
		logging.Errorf("Failed to read entitlement for %s: %v", email, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "failed to read entitlement")
		return
	}

	if err := database.SetPro(email, false); err != nil {
		logging.Errorf("Failed to revoke %s: %v", email, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "failed to revoke")
		return
	}

	logging.Infof("Admin revoked Pro status for %s", email)
	response.SuccessJSON(c, gin.H{"email": email, "is_pro": false})
}
