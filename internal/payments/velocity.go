package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sathicare/booking-core/pkg/logging"
)

// VelocityChecker caps how many payment orders one client may open per window.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

type VelocityConfig struct {
	MaxOrdersPerClient int
	Window             time.Duration
	Enabled            bool
}

func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxOrdersPerClient: 5,
		Window:             time.Hour,
		Enabled:            true,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckOrderVelocity counts an order attempt for clientID. Redis failures fail open.
func (v *VelocityChecker) CheckOrderVelocity(ctx context.Context, clientID uuid.UUID) (*VelocityResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "velocity.check_order")
	defer span.End()
	span.SetAttributes(attribute.String("booking.client_id", clientID.String()))

	if v == nil || v.redis == nil || !v.config.Enabled {
		return &VelocityResult{Allowed: true}, nil
	}

	key := velocityKey(clientID)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.Window)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxOrdersPerClient,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxOrdersPerClient,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d payment orders in %s", v.config.MaxOrdersPerClient, v.config.Window)
		v.logger.Warn("order velocity exceeded",
			"client_id", clientID,
			"count", count,
			"max", v.config.MaxOrdersPerClient,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// ResetOrderVelocity clears the counter for a client (admin use).
func (v *VelocityChecker) ResetOrderVelocity(ctx context.Context, clientID uuid.UUID) error {
	return v.redis.Del(ctx, velocityKey(clientID)).Err()
}

func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	// Expiry is set on the first increment only so the window does not slide.
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

func velocityKey(clientID uuid.UUID) string {
	return "velocity:order:" + clientID.String()
}
