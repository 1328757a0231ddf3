package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	AdminJWTSecret string
	AdminPhone     string
	AllowedOrigins []string

	// Webhook rate limiting, per source IP. Zero disables it.
	WebhookRatePerSecond float64
	WebhookBurst         int

	// WhatsApp Cloud API
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppTimeout       time.Duration

	// Conversation sessions
	RedisAddr      string
	RedisPassword  string
	SessionTimeout time.Duration

	// Notification dispatcher
	RunDispatcher     bool
	DispatchInterval  time.Duration
	DispatchBatchSize int
	SentRetention     time.Duration

	// Schedule defaults
	ScheduleConfigPath string
	BookingHorizonDays int
	AutoBlockMonths    int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminPhone:     getEnv("ADMIN_PHONE", ""),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", nil),

		WebhookRatePerSecond: getEnvAsFloat("WEBHOOK_RATE_PER_SECOND", 5),
		WebhookBurst:         getEnvAsInt("WEBHOOK_BURST", 10),

		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppTimeout:       getEnvAsDuration("WHATSAPP_TIMEOUT", 20*time.Second),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		SessionTimeout: getEnvAsDuration("SESSION_TIMEOUT", 10*time.Minute),

		RunDispatcher:     getEnvAsBool("RUN_DISPATCHER", true),
		DispatchInterval:  getEnvAsDuration("DISPATCH_INTERVAL", time.Minute),
		DispatchBatchSize: getEnvAsInt("DISPATCH_BATCH_SIZE", 25),
		SentRetention:     getEnvAsDuration("SENT_RETENTION", 7*24*time.Hour),

		ScheduleConfigPath: getEnv("SCHEDULE_CONFIG_PATH", ""),
		BookingHorizonDays: getEnvAsInt("BOOKING_HORIZON_DAYS", 60),
		AutoBlockMonths:    getEnvAsInt("AUTO_BLOCK_MONTHS", 6),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable as a slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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
