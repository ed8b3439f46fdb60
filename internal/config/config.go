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
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Booking policy
	SlotHoldTTL            time.Duration
	SlotWindowDays         int
	LateCancellationFee    int
	LateCancellationWindow time.Duration

	// Portal auth
	PortalJWTSecret string

	// Payments
	PaymentProvider     string
	PaymentAPIKey       string
	PaymentAPISecret    string
	PaymentBaseURL      string
	PaymentWebhookKey   string
	PaymentCurrency     string
	ConsultationFee     int
	AllowFakePayments   bool

	// Video rooms
	VideoRoomTokenSecret string
	VideoRoomTokenTTL    time.Duration

	// Notifications
	EmailProvider      string
	SendGridAPIKey     string
	SendGridFromEmail  string
	SendGridFromName   string
	ReminderLeadTimes  []time.Duration
	ReminderQueueURL   string
	UseMemoryQueue     bool
	WorkerCount        int

	// AWS (SES email, SQS reminder queue)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis (video session cache)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		SlotHoldTTL:            getEnvAsDuration("SLOT_HOLD_TTL", 10*time.Minute),
		SlotWindowDays:         getEnvAsInt("SLOT_WINDOW_DAYS", 14),
		LateCancellationFee:    getEnvAsInt("LATE_CANCELLATION_FEE", 250),
		LateCancellationWindow: getEnvAsDuration("LATE_CANCELLATION_WINDOW", 24*time.Hour),

		PortalJWTSecret: getEnv("PORTAL_JWT_SECRET", ""),

		PaymentProvider:   strings.ToLower(strings.TrimSpace(getEnv("PAYMENT_PROVIDER", "razorpay"))),
		PaymentAPIKey:     getEnv("PAYMENT_API_KEY", ""),
		PaymentAPISecret:  getEnv("PAYMENT_API_SECRET", ""),
		PaymentBaseURL:    getEnv("PAYMENT_BASE_URL", ""),
		PaymentWebhookKey: getEnv("PAYMENT_WEBHOOK_SIGNATURE_KEY", ""),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "INR"),
		ConsultationFee:   getEnvAsInt("CONSULTATION_FEE", 500),
		AllowFakePayments: getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),

		VideoRoomTokenSecret: getEnv("VIDEO_ROOM_TOKEN_SECRET", ""),
		VideoRoomTokenTTL:    getEnvAsDuration("VIDEO_ROOM_TOKEN_TTL", 2*time.Hour),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "SproutCare"),
		ReminderLeadTimes: getEnvAsDurations("REMINDER_LEAD_TIMES", []time.Duration{24 * time.Hour, 1 * time.Hour}),
		ReminderQueueURL:  getEnv("REMINDER_QUEUE_URL", ""),
		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
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

// getEnvAsList splits a comma-separated environment variable, trimming blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsDurations parses a comma-separated list of durations.
func getEnvAsDurations(key string, defaultValue []time.Duration) []time.Duration {
	parts := getEnvAsList(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(p)
		if err != nil {
			return defaultValue
		}
		out = append(out, d)
	}
	return out
}
