package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Admin authentication: either the shared-secret header or an HMAC JWT.
	AdminAPIKey    string
	AdminJWTSecret string

	// Push gateway
	PushGatewayURL     string
	PushGatewayToken   string
	PushSendTimeout    time.Duration
	DispatchWorkers    int
	PhoneChunkSize     int
	PreviewTTL         time.Duration
	DefaultCountryCode string

	// Clinic defaults used when reminder settings are missing fields.
	ClinicName      string
	DefaultTemplate string

	// Operator run-summary email (optional)
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SummaryRecipient  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminAPIKey:    getEnv("ADMIN_API_KEY", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		PushGatewayURL:     getEnv("PUSH_GATEWAY_URL", "https://exp.host/--/api/v2/push"),
		PushGatewayToken:   getEnv("PUSH_GATEWAY_TOKEN", ""),
		PushSendTimeout:    getEnvAsDuration("PUSH_SEND_TIMEOUT", 10*time.Second),
		DispatchWorkers:    getEnvAsInt("DISPATCH_WORKERS", 20),
		PhoneChunkSize:     getEnvAsInt("PHONE_CHUNK_SIZE", 50),
		PreviewTTL:         getEnvAsDuration("PREVIEW_TTL", 15*time.Minute),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "55"),

		ClinicName:      getEnv("CLINIC_NAME", ""),
		DefaultTemplate: getEnv("DEFAULT_REMINDER_TEMPLATE", "Ola {name}, lembrete da sua sessao em {date} as {time}."),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Attend Platform"),
		SummaryRecipient:  getEnv("DISPATCH_SUMMARY_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
