package models

import (
	"strings"
	"time"
)

// EntitlementRecord 用户授权记录
// One row per account; the primary key is the normalized email, matching
// the document id used by every client installation and by the webhook.
type EntitlementRecord struct {
	Email string `json:"email" gorm:"primaryKey;size:255"`

	// Current entitlement. A true value with a past ExpiresAt must be
	// read as not entitled; expiry is never purged by the store itself.
	IsPro bool `json:"is_pro"`

	// Identifier fields. The account may have been entitled through
	// different billing integrations over time; any one matching is
	// sufficient proof of ownership.
	LicenseKey             string `json:"license_key" gorm:"size:100;index"`
	SubscriptionID         string `json:"subscription_id" gorm:"size:100;index"`
	RazorpaySubscriptionID string `json:"razorpay_subscription_id" gorm:"size:100"`
	StripeSubscriptionID   string `json:"stripe_subscription_id" gorm:"size:100"`
	// Column name pinned: gorm's snake_case naming would split this
	// into lemon_squeezy_license_key and break the raw identifier scan.
	LemonSqueezyLicenseKey string `json:"lemonsqueezy_license_key" gorm:"column:lemonsqueezy_license_key;size:100"`

	// Absent means "no expiry known": non-expiring until told otherwise.
	ExpiresAt *time.Time `json:"expires_at"`

	// Lifecycle bookkeeping only, never used for entitlement decisions.
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

// Identifiers returns the non-empty identifier fields of the record.
func (r *EntitlementRecord) Identifiers() []string {
	var ids []string
	for _, id := range []string{
		r.LicenseKey,
		r.SubscriptionID,
		r.RazorpaySubscriptionID,
		r.StripeSubscriptionID,
		r.LemonSqueezyLicenseKey,
	} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// HasIdentifier reports whether key matches any identifier field.
func (r *EntitlementRecord) HasIdentifier(key string) bool {
	if key == "" {
		return false
	}
	for _, id := range r.Identifiers() {
		if id == key {
			return true
		}
	}
	return false
}

// Entitled re-evaluates the record at time now. IsPro alone is not
// authoritative: a lapsed ExpiresAt revokes on read.
func (r *EntitlementRecord) Entitled(now time.Time) bool {
	if !r.IsPro {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}

// LicenseIndex 授权标识索引
// Secondary index identifier -> email, maintained transactionally
// alongside the record so the fallback resolver never scans the whole
// table. The primary key doubles as a uniqueness constraint: when two
// emails claim the same identifier concurrently, the first writer wins.
type LicenseIndex struct {
	Identifier string    `json:"identifier" gorm:"primaryKey;size:100"`
	Email      string    `json:"email" gorm:"not null;size:255;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// NormalizeEmail lowercases and trims an email so it matches the
// record's primary key exactly.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
