package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// Billing provider webhook configuration
	// The HMAC secret is provisioned out-of-band and must never appear
	// in source or version control.
	WebhookSecret string

	// Admin API configuration
	AdminAPIKey string

	// Brevo email configuration (optional; activation emails are
	// skipped when unset)
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string

	// Charge events without a next-charge timestamp fall back to
	// now + this many days.
	FallbackExpiryDays int
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Ignore error if .env file doesn't exist
	}

	AppConfig = &Config{
		Port:               getEnv("PORT", "8080"),
		Mode:               getEnv("GIN_MODE", "debug"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:     getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:      getEnv("BREVO_FROM_NAME", "License Service"),
		FallbackExpiryDays: getEnvInt("FALLBACK_EXPIRY_DAYS", 30),
	}

	if AppConfig.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is not set")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
