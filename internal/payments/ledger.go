package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// ErrIntentNotFound is returned when no intent exists for an order id, either
// because it was never recorded or because it expired.
var ErrIntentNotFound = errors.New("payments: order intent not found")

// OrderIntent pins what a gateway order pays for. The booking made after a
// verified payment is built from the intent, never from callback input.
type OrderIntent struct {
	OrderID         string    `json:"order_id"`
	ClientID        uuid.UUID `json:"client_id"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	SessionTypeID   uuid.UUID `json:"session_type_id"`
	SessionName     string    `json:"session_name"`
	DurationMinutes int       `json:"duration_minutes"`
	StartsAt        time.Time `json:"starts_at"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"created_at"`
}

// OrderLedger stores order intents in Redis until they expire.
type OrderLedger struct {
	redis *redis.Client
}

func NewOrderLedger(client *redis.Client) *OrderLedger {
	if client == nil {
		panic("payments: redis client cannot be nil")
	}
	return &OrderLedger{redis: client}
}

func (l *OrderLedger) Record(ctx context.Context, intent OrderIntent, ttl time.Duration) error {
	ctx, span := paymentsTracer.Start(ctx, "ledger.record")
	defer span.End()
	span.SetAttributes(attribute.String("payments.order_id", intent.OrderID))

	if intent.OrderID == "" {
		return errors.New("payments: order intent missing order id")
	}
	if ttl <= 0 {
		return fmt.Errorf("payments: order intent ttl must be positive, got %s", ttl)
	}
	raw, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("payments: encode intent: %w", err)
	}
	// SETNX keeps the first intent if the gateway ever reuses an order id.
	ok, err := l.redis.SetNX(ctx, ledgerKey(intent.OrderID), raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("payments: record intent: %w", err)
	}
	if !ok {
		return fmt.Errorf("payments: order intent %s already recorded", intent.OrderID)
	}
	return nil
}

func (l *OrderLedger) Lookup(ctx context.Context, orderID string) (OrderIntent, error) {
	ctx, span := paymentsTracer.Start(ctx, "ledger.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("payments.order_id", orderID))

	raw, err := l.redis.Get(ctx, ledgerKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderIntent{}, ErrIntentNotFound
	}
	if err != nil {
		return OrderIntent{}, fmt.Errorf("payments: lookup intent: %w", err)
	}
	var intent OrderIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return OrderIntent{}, fmt.Errorf("payments: decode intent: %w", err)
	}
	return intent, nil
}

// MarkOrphaned claims the reconciliation record for a payment. Only the first
// claim within ttl reports true.
func (l *OrderLedger) MarkOrphaned(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	ctx, span := paymentsTracer.Start(ctx, "ledger.mark_orphaned")
	defer span.End()
	span.SetAttributes(attribute.String("payments.payment_id", paymentID))

	if paymentID == "" {
		return false, errors.New("payments: orphan marker missing payment id")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("payments: orphan marker ttl must be positive, got %s", ttl)
	}
	first, err := l.redis.SetNX(ctx, orphanKey(paymentID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("payments: mark orphaned: %w", err)
	}
	return first, nil
}

func ledgerKey(orderID string) string {
	return "booking:order:" + orderID
}

func orphanKey(paymentID string) string {
	return "booking:orphan:" + paymentID
}
