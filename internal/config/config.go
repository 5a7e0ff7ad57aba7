package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// JWTSecret verifies bearer tokens minted by the identity service.
	JWTSecret string

	PaymentKeyID     string
	PaymentKeySecret string
	PaymentBaseURL   string
	PaymentDryRun    bool
	PaymentCurrency  string

	// BookingTimezone is the single zone availability templates are interpreted in.
	BookingTimezone string

	OrderIntentTTL      time.Duration
	OrderVelocityMax    int
	OrderVelocityWindow time.Duration

	VideoRoomBaseURL string

	SupportEmail      string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	BookingEventsQueueURL string
	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
	OutboxMaxAttempts     int

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		JWTSecret: getEnv("JWT_SECRET", ""),

		PaymentKeyID:     getEnv("PAYMENT_KEY_ID", ""),
		PaymentKeySecret: getEnv("PAYMENT_KEY_SECRET", ""),
		PaymentBaseURL:   getEnv("PAYMENT_BASE_URL", "https://api.razorpay.com"),
		PaymentDryRun:    getEnvAsBool("PAYMENT_DRY_RUN", false),
		PaymentCurrency:  strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),

		BookingTimezone: getEnv("BOOKING_TIMEZONE", "Asia/Kolkata"),

		OrderIntentTTL:      getEnvAsDuration("ORDER_INTENT_TTL", 30*time.Minute),
		OrderVelocityMax:    getEnvAsInt("ORDER_VELOCITY_MAX", 5),
		OrderVelocityWindow: getEnvAsDuration("ORDER_VELOCITY_WINDOW", time.Hour),

		VideoRoomBaseURL: getEnv("VIDEO_ROOM_BASE_URL", "https://meet.jit.si"),

		SupportEmail:      getEnv("SUPPORT_EMAIL", ""),
		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Sathi Care"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),
		OutboxPollInterval:    getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:       getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		OutboxMaxAttempts:     getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 10),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves BookingTimezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BookingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports settings that would leave the booking core unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if !c.PaymentDryRun && (c.PaymentKeyID == "" || c.PaymentKeySecret == "") {
			errs = append(errs, errors.New("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required unless PAYMENT_DRY_RUN"))
		}
	}
	if c.OrderIntentTTL <= 0 {
		errs = append(errs, fmt.Errorf("ORDER_INTENT_TTL must be positive, got %s", c.OrderIntentTTL))
	}
	if len(c.PaymentCurrency) != 3 {
		errs = append(errs, fmt.Errorf("PAYMENT_CURRENCY must be an ISO 4217 code, got %q", c.PaymentCurrency))
	}
	return errors.Join(errs...)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
