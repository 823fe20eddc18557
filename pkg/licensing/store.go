// Package licensing is the client half of the Pro entitlement system.
// It runs inside the desktop application, reads the remote entitlement
// store, and makes local-only allow/deny decisions when the network is
// unavailable. The server half (the billing webhook) never calls it;
// the store is the sole rendezvous point between the two.
package licensing

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStoreUnavailable reports a transient network or store failure.
// Callers must not conflate it with "checked and denied": a denied
// check is a false result with a nil error, while this error means the
// caller should fall back to the cached grace-period decision.
var ErrStoreUnavailable = errors.New("entitlement store unavailable")

// Record is the client's view of one entitlement document.
type Record struct {
	Email                  string     `json:"email"`
	IsPro                  bool       `json:"is_pro"`
	LicenseKey             string     `json:"license_key"`
	SubscriptionID         string     `json:"subscription_id"`
	RazorpaySubscriptionID string     `json:"razorpay_subscription_id"`
	StripeSubscriptionID   string     `json:"stripe_subscription_id"`
	LemonSqueezyLicenseKey string     `json:"lemonsqueezy_license_key"`
	ExpiresAt              *time.Time `json:"expires_at"`
	CreatedAt              time.Time  `json:"created_at"`
	LastSeenAt             *time.Time `json:"last_seen_at"`
}

// HasIdentifier reports whether key matches any of the record's
// identifier fields. The account may have been entitled through
// different billing integrations over time, so any one match is
// sufficient proof of ownership.
func (r *Record) HasIdentifier(key string) bool {
	if key == "" {
		return false
	}
	for _, id := range []string{
		r.LicenseKey,
		r.SubscriptionID,
		r.RazorpaySubscriptionID,
		r.StripeSubscriptionID,
		r.LemonSqueezyLicenseKey,
	} {
		if id != "" && id == key {
			return true
		}
	}
	return false
}

// Expired reports whether the record's entitlement has lapsed at time
// now. An absent ExpiresAt means no expiry is known, so the record is
// treated as non-expiring until told otherwise.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Store is the remote entitlement store as seen by a client
// installation. Absent records are (nil, nil), never an error;
// transport failures wrap ErrStoreUnavailable.
type Store interface {
	// GetRecord reads the record for a normalized email.
	GetRecord(ctx context.Context, email string) (*Record, error)

	// CreateFreeRecord registers the email as a known free account.
	// Idempotent; never downgrades an existing record.
	CreateFreeRecord(ctx context.Context, email string) (*Record, error)

	// FindByIdentifier finds the record owning a license key or
	// subscription id, whichever field it is stored under.
	FindByIdentifier(ctx context.Context, key string) (*Record, error)

	// AttachIdentifier merges key into the email's record and marks
	// it Pro. Only called after ownership and expiry are verified.
	AttachIdentifier(ctx context.Context, email, key string) (*Record, error)
}

// normalizeEmail mirrors the server's document-id normalization so a
// lookup always hits the same record the webhook writes.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
