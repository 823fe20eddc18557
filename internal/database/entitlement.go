package database

import (
	"fmt"
	"time"

	"license-api/internal/models"
	"license-api/pkg/logging"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// identifierMatch matches a key against every identifier column.
const identifierMatch = "license_key = ? OR subscription_id = ? OR razorpay_subscription_id = ? OR stripe_subscription_id = ? OR lemonsqueezy_license_key = ?"

// GetEntitlementByEmail 通过邮箱获取授权记录
func GetEntitlementByEmail(email string) (*models.EntitlementRecord, error) {
	var record models.EntitlementRecord
	err := DB.Where("email = ?", models.NormalizeEmail(email)).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateFreeEntitlementIfAbsent creates the minimal free record for an
// email the store has never seen. Explicit and idempotent: calling it
// for an existing account is a no-op and never downgrades fields.
func CreateFreeEntitlementIfAbsent(email string) (*models.EntitlementRecord, error) {
	record := models.EntitlementRecord{
		Email: models.NormalizeEmail(email),
		IsPro: false,
	}
	result := DB.Where("email = ?", record.Email).FirstOrCreate(&record)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create free record: %w", result.Error)
	}
	return &record, nil
}

// UpsertCharge applies a successful recurring charge: merge
// is_pro=true, the subscription identifier, and the new expiry into the
// record at email, creating it when absent. Other fields survive, so
// applying the same charge twice leaves the record unchanged.
func UpsertCharge(email, subscriptionID string, expiresAt time.Time) error {
	normalized := models.NormalizeEmail(email)
	return DB.Transaction(func(tx *gorm.DB) error {
		var record models.EntitlementRecord
		err := tx.Where("email = ?", normalized).First(&record).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				record = models.EntitlementRecord{
					Email:          normalized,
					IsPro:          true,
					LicenseKey:     subscriptionID,
					SubscriptionID: subscriptionID,
					ExpiresAt:      &expiresAt,
				}
				if err := tx.Create(&record).Error; err != nil {
					return err
				}
				return upsertIndex(tx, subscriptionID, normalized)
			}
			return err
		}

		// Field-level merge so a concurrent client write to a benign
		// field never clobbers the entitlement fields, and vice versa.
		updates := map[string]interface{}{
			"is_pro":          true,
			"license_key":     subscriptionID,
			"subscription_id": subscriptionID,
			"expires_at":      expiresAt,
		}
		if err := tx.Model(&models.EntitlementRecord{}).Where("email = ?", normalized).Updates(updates).Error; err != nil {
			return err
		}
		return upsertIndex(tx, subscriptionID, normalized)
	})
}

// RevokeByIdentifier sets is_pro=false on every record whose identifier
// set contains key and returns how many were revoked. Zero matches is a
// normal outcome, not an error: pause/cancel events may reference an
// identifier the store never learned.
func RevokeByIdentifier(key string) (int64, error) {
	if key == "" {
		return 0, nil
	}

	emails := make(map[string]struct{})

	// Index lookup first, then the column scan for records written
	// before the index existed.
	var indexed []models.LicenseIndex
	if err := DB.Where("identifier = ?", key).Find(&indexed).Error; err != nil {
		return 0, err
	}
	for _, entry := range indexed {
		emails[entry.Email] = struct{}{}
	}

	var matches []models.EntitlementRecord
	if err := DB.Where(identifierMatch, key, key, key, key, key).Find(&matches).Error; err != nil {
		return 0, err
	}
	for _, record := range matches {
		emails[record.Email] = struct{}{}
	}

	var revoked int64
	for email := range emails {
		// An index row can outlive the identifier it was written for
		// (a re-subscribe overwrites license_key/subscription_id), so
		// the record's current identifier set decides, never the index
		// alone. A late cancel for a replaced subscription must not
		// revoke the freshly paid record.
		record, err := GetEntitlementByEmail(email)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return revoked, err
		}
		if !record.HasIdentifier(key) {
			continue
		}

		result := DB.Model(&models.EntitlementRecord{}).Where("email = ?", email).Update("is_pro", false)
		if result.Error != nil {
			return revoked, result.Error
		}
		revoked += result.RowsAffected
		logging.Infof("Revoked Pro status for %s (identifier %s)", email, key)
	}
	return revoked, nil
}

// FindEntitlementByIdentifier finds the record owning key, via the
// index when possible. Returns gorm.ErrRecordNotFound when no record
// carries the identifier.
func FindEntitlementByIdentifier(key string) (*models.EntitlementRecord, error) {
	if key == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var entry models.LicenseIndex
	err := DB.Where("identifier = ?", key).First(&entry).Error
	if err == nil {
		record, err := GetEntitlementByEmail(entry.Email)
		if err == nil && record.HasIdentifier(key) {
			return record, nil
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		// Stale index row: the record no longer carries the key (or is
		// gone). Fall through to the column scan.
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var record models.EntitlementRecord
	if err := DB.Where(identifierMatch, key, key, key, key, key).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// AttachIdentifier merges key into the record at email and marks it
// Pro. Used by the fallback resolver after it has verified ownership
// and expiry against the matching record.
func AttachIdentifier(email, key string) (*models.EntitlementRecord, error) {
	normalized := models.NormalizeEmail(email)
	err := DB.Transaction(func(tx *gorm.DB) error {
		record := models.EntitlementRecord{Email: normalized}
		if err := tx.Where("email = ?", normalized).FirstOrCreate(&record).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"is_pro":      true,
			"license_key": key,
		}
		if err := tx.Model(&models.EntitlementRecord{}).Where("email = ?", normalized).Updates(updates).Error; err != nil {
			return err
		}
		return upsertIndex(tx, key, normalized)
	})
	if err != nil {
		return nil, err
	}
	return GetEntitlementByEmail(normalized)
}

// SetPro sets the entitlement flag directly. Admin use; webhook events
// go through UpsertCharge/RevokeByIdentifier instead.
func SetPro(email string, isPro bool) error {
	return DB.Model(&models.EntitlementRecord{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Update("is_pro", isPro).Error
}

// TouchLastSeen stamps last_seen_at. Single-field merge: bookkeeping
// must never race with entitlement writes.
func TouchLastSeen(email string) {
	now := time.Now()
	err := DB.Model(&models.EntitlementRecord{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Update("last_seen_at", now).Error
	if err != nil {
		logging.Errorf("Failed to touch last_seen_at for %s: %v", email, err)
	}
}

// upsertIndex maintains the identifier -> email index inside the same
// transaction as the record write. ON CONFLICT DO NOTHING gives the
// uniqueness guarantee: the first email to claim an identifier keeps it.
func upsertIndex(tx *gorm.DB, identifier, email string) error {
	if identifier == "" {
		return nil
	}
	entry := models.LicenseIndex{Identifier: identifier, Email: email}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}
