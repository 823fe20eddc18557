package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"license-api/internal/config"
	"license-api/internal/database"
	"license-api/internal/models"
	"license-api/internal/services"
	"license-api/pkg/logging"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const testSecret = "test-webhook-secret"

func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	logging.InitLogging()

	config.AppConfig = &config.Config{
		WebhookSecret:      testSecret,
		AdminAPIKey:        "test-admin-key",
		FallbackExpiryDays: 30,
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.EntitlementRecord{}, &models.LicenseIndex{}))

	database.DB = db
	database.RedisClient = nil

	r := gin.New()
	SetupRoutes(r)
	return r
}

// postWebhook delivers a raw body with a signature computed by the
// given secret and returns the recorder.
func postWebhook(r *gin.Engine, body []byte, secret string) *httptest.ResponseRecorder {
	return postWebhookEvent(r, body, secret, "")
}

func postWebhookEvent(r *gin.Engine, body []byte, secret, eventID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/billing", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Razorpay-Signature", services.NewSignatureVerifier(secret).Sign(body))
	}
	if eventID != "" {
		req.Header.Set("X-Razorpay-Event-Id", eventID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// closeStore wedges the database handle so the next store write fails.
func closeStore(t *testing.T) {
	t.Helper()
	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

// setupDedupRedis points the webhook event dedup at a miniredis
// instance and rebuilds the routes so the handlers pick it up. Call
// after setupTestServer.
func setupDedupRedis(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	database.RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = database.RedisClient.Close()
		database.RedisClient = nil
	})
	r := gin.New()
	SetupRoutes(r)
	return r, mr
}
