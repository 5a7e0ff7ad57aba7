package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sathicare/booking-core/internal/events"
	"github.com/sathicare/booking-core/pkg/logging"
)

const supportConsumer = "notify.support_alerter"

// ProcessedTracker dedupes side effects across outbox redeliveries.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
}

// SupportAlerter e-mails support when a verified payment produced no
// appointment. Other event types pass through untouched.
type SupportAlerter struct {
	email     EmailSender
	processed ProcessedTracker
	to        string
	loc       *time.Location
	logger    *logging.Logger
}

func NewSupportAlerter(email EmailSender, processed ProcessedTracker, supportEmail string, loc *time.Location, logger *logging.Logger) *SupportAlerter {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SupportAlerter{email: email, processed: processed, to: supportEmail, loc: loc, logger: logger}
}

func (a *SupportAlerter) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != events.TypePaymentOrphaned {
		return nil
	}
	if a.to == "" {
		a.logger.Warn("support email not configured, orphaned payment not mailed", "event_id", entry.ID)
		return nil
	}
	var evt events.PaymentOrphanedV1
	if err := json.Unmarshal(entry.Payload, &evt); err != nil {
		// Retrying cannot fix a bad payload.
		a.logger.Error("orphaned payment event undecodable", "error", err, "event_id", entry.ID)
		return nil
	}

	// Every record of one payment shares an event id, so support hears once.
	key := dedupeKey(entry, evt)
	if a.processed != nil {
		seen, err := a.processed.AlreadyProcessed(ctx, supportConsumer, key)
		if err != nil {
			return err
		}
		if seen {
			a.logger.Info("support already alerted for payment", "payment_id", evt.PaymentID, "event_id", key)
			return nil
		}
	}

	if err := a.email.Send(ctx, a.orphanedMessage(evt)); err != nil {
		return fmt.Errorf("notify: support alert: %w", err)
	}
	if a.processed != nil {
		if _, err := a.processed.MarkProcessed(ctx, supportConsumer, key); err != nil {
			a.logger.Error("failed to mark support alert processed", "error", err, "event_id", key)
		}
	}
	a.logger.Info("support alerted for orphaned payment", "order_id", evt.OrderID, "payment_id", evt.PaymentID, "reason", evt.Reason)
	return nil
}

// dedupeKey prefers the payload's event id and falls back to the outbox row.
func dedupeKey(entry events.OutboxEntry, evt events.PaymentOrphanedV1) uuid.UUID {
	if id, err := uuid.Parse(evt.EventID); err == nil {
		return id
	}
	return entry.ID
}

func (a *SupportAlerter) orphanedMessage(evt events.PaymentOrphanedV1) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "A payment was captured but no appointment was created. Refund required.\n\n")
	fmt.Fprintf(&b, "Reason: %s\n", describeReason(evt.Reason))
	fmt.Fprintf(&b, "Order: %s\n", evt.OrderID)
	fmt.Fprintf(&b, "Payment: %s\n", evt.PaymentID)
	fmt.Fprintf(&b, "Client: %s\n", evt.ClientID)
	if evt.ProfessionalID != uuid.Nil {
		fmt.Fprintf(&b, "Professional: %s\n", evt.ProfessionalID)
	}
	if !evt.StartsAt.IsZero() {
		fmt.Fprintf(&b, "Slot: %s\n", evt.StartsAt.In(a.loc).Format("Monday, January 2 2006 at 15:04 MST"))
	}
	if evt.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %s\n", formatMinor(evt.Amount, evt.Currency))
	}
	fmt.Fprintf(&b, "Detected: %s\n", evt.OccurredAt.In(a.loc).Format(time.RFC1123))

	return EmailMessage{
		To:      a.to,
		Subject: fmt.Sprintf("Refund required: payment %s", evt.PaymentID),
		Body:    b.String(),
	}
}

func describeReason(reason string) string {
	switch reason {
	case "slot_taken":
		return "the slot was booked by another client while payment was in flight"
	case "order_intent_missing":
		return "the payment order expired or was unknown when the payment arrived"
	case "reservation_failed":
		return "the appointment could not be saved after payment; check for an appointment carrying this payment before refunding"
	default:
		return reason
	}
}

func formatMinor(amount int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", strings.ToUpper(currency), amount/100, amount%100)
}
