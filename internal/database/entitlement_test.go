package database

import (
	"path/filepath"
	"testing"
	"time"

	"license-api/internal/models"
	"license-api/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	logging.InitLogging()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.EntitlementRecord{}, &models.LicenseIndex{}))
	DB = db
}

func TestUpsertChargeCreatesAndMerges(t *testing.T) {
	setupTestDB(t)
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, UpsertCharge("  User@X.com ", "sub_1", expires))

	record, err := GetEntitlementByEmail("user@x.com")
	require.NoError(t, err)
	assert.True(t, record.IsPro)
	assert.Equal(t, "sub_1", record.SubscriptionID)
	require.NotNil(t, record.ExpiresAt)
	assert.True(t, record.ExpiresAt.Equal(expires))

	// Second charge extends the expiry without touching anything else.
	later := expires.AddDate(0, 1, 0)
	require.NoError(t, UpsertCharge("user@x.com", "sub_1", later))

	updated, err := GetEntitlementByEmail("user@x.com")
	require.NoError(t, err)
	assert.True(t, updated.ExpiresAt.Equal(later))
	assert.True(t, updated.CreatedAt.Equal(record.CreatedAt))
}

func TestUpsertChargeMaintainsIndex(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, UpsertCharge("user@x.com", "sub_1", time.Now().AddDate(0, 1, 0)))

	var entry models.LicenseIndex
	require.NoError(t, DB.Where("identifier = ?", "sub_1").First(&entry).Error)
	assert.Equal(t, "user@x.com", entry.Email)
}

func TestIndexFirstWriterWins(t *testing.T) {
	setupTestDB(t)
	expires := time.Now().AddDate(0, 1, 0)

	require.NoError(t, UpsertCharge("first@x.com", "sub_shared", expires))
	require.NoError(t, UpsertCharge("second@x.com", "sub_shared", expires))

	var entry models.LicenseIndex
	require.NoError(t, DB.Where("identifier = ?", "sub_shared").First(&entry).Error)
	assert.Equal(t, "first@x.com", entry.Email)
}

func TestRevokeByIdentifierRevokesAllMatches(t *testing.T) {
	setupTestDB(t)
	expires := time.Now().AddDate(0, 1, 0)

	require.NoError(t, UpsertCharge("one@x.com", "sub_dup", expires))
	// A record carrying the identifier in a different field, written
	// before the index existed.
	require.NoError(t, DB.Create(&models.EntitlementRecord{
		Email:                  "two@x.com",
		IsPro:                  true,
		RazorpaySubscriptionID: "sub_dup",
	}).Error)

	revoked, err := RevokeByIdentifier("sub_dup")
	require.NoError(t, err)
	assert.EqualValues(t, 2, revoked)

	for _, email := range []string{"one@x.com", "two@x.com"} {
		record, err := GetEntitlementByEmail(email)
		require.NoError(t, err)
		assert.False(t, record.IsPro, email)
	}
}

func TestRevokeByIdentifierIgnoresSupersededIdentifier(t *testing.T) {
	setupTestDB(t)
	expires := time.Now().AddDate(0, 1, 0)

	// Re-subscribe: the record's identifiers move from sub_old to
	// sub_new, but the sub_old index row stays behind.
	require.NoError(t, UpsertCharge("user@x.com", "sub_old", expires))
	require.NoError(t, UpsertCharge("user@x.com", "sub_new", expires))

	// A late cancel for the replaced subscription must not touch the
	// freshly paid record.
	revoked, err := RevokeByIdentifier("sub_old")
	require.NoError(t, err)
	assert.Zero(t, revoked)

	record, err := GetEntitlementByEmail("user@x.com")
	require.NoError(t, err)
	assert.True(t, record.IsPro)

	// The live identifier still revokes.
	revoked, err = RevokeByIdentifier("sub_new")
	require.NoError(t, err)
	assert.EqualValues(t, 1, revoked)
}

func TestRevokeByIdentifierNoMatchesIsNoOp(t *testing.T) {
	setupTestDB(t)

	revoked, err := RevokeByIdentifier("sub_unknown")
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestCreateFreeEntitlementIfAbsentNeverDowngrades(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, UpsertCharge("user@x.com", "sub_1", time.Now().AddDate(0, 1, 0)))

	record, err := CreateFreeEntitlementIfAbsent("user@x.com")
	require.NoError(t, err)
	assert.True(t, record.IsPro, "existing Pro record must survive a free-record sync")
}

func TestFindEntitlementByIdentifierScansLegacyColumns(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, DB.Create(&models.EntitlementRecord{
		Email:                  "legacy@x.com",
		IsPro:                  true,
		LemonSqueezyLicenseKey: "ls-key-9",
	}).Error)

	record, err := FindEntitlementByIdentifier("ls-key-9")
	require.NoError(t, err)
	assert.Equal(t, "legacy@x.com", record.Email)

	_, err = FindEntitlementByIdentifier("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindEntitlementByIdentifierIgnoresStaleIndexEntry(t *testing.T) {
	setupTestDB(t)
	expires := time.Now().AddDate(0, 1, 0)

	require.NoError(t, UpsertCharge("user@x.com", "sub_old", expires))
	require.NoError(t, UpsertCharge("user@x.com", "sub_new", expires))

	// The sub_old index row survives but the record no longer carries
	// the key, so a lookup must not resolve through it; a fallback
	// claim against a replaced key must not grant anything.
	_, err := FindEntitlementByIdentifier("sub_old")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	record, err := FindEntitlementByIdentifier("sub_new")
	require.NoError(t, err)
	assert.Equal(t, "user@x.com", record.Email)
}

func TestAttachIdentifierCreatesRecordAndIndex(t *testing.T) {
	setupTestDB(t)

	record, err := AttachIdentifier("Moved@X.com", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "moved@x.com", record.Email)
	assert.True(t, record.IsPro)
	assert.Equal(t, "key-1", record.LicenseKey)

	found, err := FindEntitlementByIdentifier("key-1")
	require.NoError(t, err)
	assert.Equal(t, "moved@x.com", found.Email)
}

func TestEntitledReEvaluatesExpiryOnRead(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	record := models.EntitlementRecord{IsPro: true, ExpiresAt: &past}

	assert.False(t, record.Entitled(time.Now()), "is_pro with a lapsed expiry reads as not entitled")
	assert.True(t, record.Entitled(past.Add(-time.Minute)))

	record.ExpiresAt = nil
	assert.True(t, record.Entitled(time.Now()), "absent expiry means non-expiring")
}
