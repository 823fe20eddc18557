package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"license-api/internal/config"
	"license-api/internal/database"
	"license-api/internal/models"
	"license-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// BillingWebhookHandler handles billing provider events.
// POST /webhook/billing
//
// Delivery is at-least-once and unordered, so every branch here is
// written to be safe under retries: signature failures are the only
// terminal rejection, malformed events are acknowledged as no-ops to
// avoid retry storms, and only store failures return 500 so the
// provider retries.
func BillingWebhookHandler(c *gin.Context) {
	signature := c.GetHeader("X-Razorpay-Signature")

	// The signature is computed over the exact wire bytes, so the body
	// must be read raw before anything parses it.
	body, err := c.GetRawData()
	if err != nil {
		logging.Errorf("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to read request body",
		})
		return
	}

	if err := signatureVerifier.Verify(body, signature); err != nil {
		logging.Errorf("Webhook signature verification failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid signature",
		})
		return
	}

	var event models.BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Verified but unparseable. Acknowledge so the provider does
		// not retry a body that will never parse.
		logging.Warnf("Webhook body is not valid JSON: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Event ignored",
		})
		return
	}

	logging.Infof("Received webhook event: %s", event.Event)

	eventID := c.GetHeader("X-Razorpay-Event-Id")

	switch event.Event {
	case "subscription.charged":
		handleSubscriptionCharged(c, &event, eventID)
	case "subscription.halted", "subscription.cancelled":
		handleSubscriptionRevoked(c, &event)
	default:
		// Unknown types are acknowledged and ignored; failing would
		// make the provider retry indefinitely.
		logging.Infof("Ignoring unknown event type: %s", event.Event)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Event ignored",
		})
	}
}

// handleSubscriptionCharged handles a captured recurring payment.
func handleSubscriptionCharged(c *gin.Context, event *models.BillingEvent, eventID string) {
	email := event.Payload.Payment.PayerEmail()
	subscriptionID := event.Payload.Subscription.SubscriptionID()

	if email == "" || subscriptionID == "" {
		// Recognized type but missing expected fields: log and ack as
		// a no-op, a malformed-but-harmless event must not trigger a
		// retry storm.
		logging.Warnf("subscription.charged missing fields (email=%q, id=%q), ignoring", email, subscriptionID)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Event ignored",
		})
		return
	}

	// Next-charge timestamp when present, conservative fallback when
	// the provider omits it for this event shape.
	var expiresAt time.Time
	if chargeAt := event.Payload.Subscription.NextChargeAt(); chargeAt > 0 {
		expiresAt = time.Unix(chargeAt, 0).UTC()
	} else {
		expiresAt = time.Now().UTC().AddDate(0, 0, config.AppConfig.FallbackExpiryDays)
	}

	previous, err := database.GetEntitlementByEmail(email)
	newlyPro := err != nil || !previous.Entitled(time.Now())

	if err := database.UpsertCharge(email, subscriptionID, expiresAt); err != nil {
		logging.Errorf("Failed to upsert charge for %s: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to process event",
		})
		return
	}

	logging.Infof("Set Pro status for %s, valid until %s", email, expiresAt.Format(time.RFC3339))

	// Duplicate deliveries still hit the store (the merge-upsert is
	// idempotent); dedup only suppresses the email side effect. The
	// event id is consumed only after the write lands, so the retry of
	// a failed write still sends the activation email.
	duplicate := eventDedup.SeenBefore(c.Request.Context(), eventID)

	if newlyPro && !duplicate {
		notifier := emailNotifier
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			notifier.SendProActivated(ctx, email, expiresAt)
		}()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event processed",
	})
}

// handleSubscriptionRevoked handles pauses and cancellations. These
// events carry a subscription identifier but often no email, so the
// lookup goes through the identifier index instead.
func handleSubscriptionRevoked(c *gin.Context, event *models.BillingEvent) {
	subscriptionID := event.Payload.Subscription.SubscriptionID()
	if subscriptionID == "" {
		logging.Warnf("%s missing subscription id, ignoring", event.Event)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Event ignored",
		})
		return
	}

	revoked, err := database.RevokeByIdentifier(subscriptionID)
	if err != nil {
		logging.Errorf("Failed to revoke by identifier %s: %v", subscriptionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to process event",
		})
		return
	}

	// Zero matches is a silent no-op: the account may already be
	// inconsistent or keyed under a different identifier scheme.
	logging.Infof("%s revoked %d record(s) for identifier %s", event.Event, revoked, subscriptionID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event processed",
	})
}
