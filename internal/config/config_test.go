package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "PAYMENT_CURRENCY", "ORDER_INTENT_TTL", "VIDEO_ROOM_BASE_URL", "BOOKING_TIMEZONE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.PaymentCurrency != "INR" {
		t.Fatalf("expected INR, got %s", cfg.PaymentCurrency)
	}
	if cfg.OrderIntentTTL != 30*time.Minute {
		t.Fatalf("expected 30m order ttl, got %s", cfg.OrderIntentTTL)
	}
	if cfg.VideoRoomBaseURL != "https://meet.jit.si" {
		t.Fatalf("unexpected video base %s", cfg.VideoRoomBaseURL)
	}
	if cfg.Location().String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", cfg.Location())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("PAYMENT_DRY_RUN", "true")
	t.Setenv("ORDER_VELOCITY_MAX", "2")
	t.Setenv("ORDER_VELOCITY_WINDOW", "15m")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("EMAIL_PROVIDER", "SES")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "4")

	cfg := Load()
	if cfg.Port != "9090" || !cfg.IsProduction() {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PaymentCurrency != "USD" {
		t.Fatalf("currency should be upper-cased, got %s", cfg.PaymentCurrency)
	}
	if !cfg.PaymentDryRun {
		t.Fatal("expected dry run")
	}
	if cfg.OrderVelocityMax != 2 || cfg.OrderVelocityWindow != 15*time.Minute {
		t.Fatalf("velocity overrides not applied: %d %s", cfg.OrderVelocityMax, cfg.OrderVelocityWindow)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected 2.5 rps, got %v", cfg.RateLimitRPS)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected lowercase provider, got %s", cfg.EmailProvider)
	}
	if cfg.OutboxMaxAttempts != 4 {
		t.Fatalf("expected 4 outbox attempts, got %d", cfg.OutboxMaxAttempts)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ORDER_VELOCITY_MAX", "many")
	t.Setenv("ORDER_INTENT_TTL", "soon")
	t.Setenv("REDIS_TLS", "maybe")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "lots")
	cfg := Load()
	if cfg.OrderVelocityMax != 5 {
		t.Fatalf("expected fallback 5, got %d", cfg.OrderVelocityMax)
	}
	if cfg.OrderIntentTTL != 30*time.Minute {
		t.Fatalf("expected fallback ttl, got %s", cfg.OrderIntentTTL)
	}
	if cfg.RedisTLS {
		t.Fatal("expected REDIS_TLS fallback false")
	}
	if cfg.OutboxMaxAttempts != 10 {
		t.Fatalf("expected fallback 10 outbox attempts, got %d", cfg.OutboxMaxAttempts)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{BookingTimezone: "Mars/Olympus"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", cfg.Location())
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Env: "production", JWTSecret: "s", DatabaseURL: "postgres://x", PaymentKeyID: "k", PaymentKeySecret: "s", PaymentCurrency: "INR", OrderIntentTTL: time.Minute}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg := base()
	cfg.JWTSecret = ""
	cfg.PaymentKeySecret = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") || !strings.Contains(err.Error(), "PAYMENT_KEY_SECRET") {
		t.Fatalf("expected both problems reported, got %v", err)
	}

	cfg = base()
	cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentDryRun = "", "", true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dry run should not need keys: %v", err)
	}

	dev := &Config{Env: "development", PaymentCurrency: "INRR", OrderIntentTTL: time.Minute}
	if err := dev.Validate(); err == nil {
		t.Fatal("expected currency error")
	}
}
