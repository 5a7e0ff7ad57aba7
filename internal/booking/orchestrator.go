package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sathicare/booking-core/internal/appointments"
	"github.com/sathicare/booking-core/internal/events"
	"github.com/sathicare/booking-core/internal/identity"
	"github.com/sathicare/booking-core/internal/observability/metrics"
	"github.com/sathicare/booking-core/internal/payments"
	"github.com/sathicare/booking-core/internal/schedule"
	"github.com/sathicare/booking-core/pkg/logging"
)

var bookingTracer = otel.Tracer("booking.internal.booking")

type ProfileReader interface {
	Profile(ctx context.Context, professionalID uuid.UUID) (schedule.Profile, error)
}

// Reserver is the reservation guard as seen by the flows.
type Reserver interface {
	Reserve(ctx context.Context, req appointments.ReserveRequest) (appointments.Appointment, error)
	IsAvailable(ctx context.Context, professionalID uuid.UUID, startsAt time.Time) (bool, error)
	FindByPaymentReference(ctx context.Context, ref string) (appointments.Appointment, error)
}

type OrderLedger interface {
	Record(ctx context.Context, intent payments.OrderIntent, ttl time.Duration) error
	Lookup(ctx context.Context, orderID string) (payments.OrderIntent, error)
	MarkOrphaned(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
}

type VelocityChecker interface {
	CheckOrderVelocity(ctx context.Context, clientID uuid.UUID) (*payments.VelocityResult, error)
}

// IncidentRecorder persists reconciliation events. *events.OutboxStore satisfies it.
type IncidentRecorder interface {
	Insert(ctx context.Context, aggregateID uuid.UUID, eventType string, payload any) (uuid.UUID, error)
}

type Deps struct {
	Profiles  ProfileReader
	Guard     Reserver
	Gateway   payments.Gateway
	Ledger    OrderLedger
	Velocity  VelocityChecker
	Incidents IncidentRecorder
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
}

type Options struct {
	Currency string
	Location *time.Location
	OrderTTL time.Duration
	// PublicKeyID is handed to the client to open the gateway checkout.
	PublicKeyID string
	// OrphanMarkerTTL bounds how long a recorded orphan suppresses repeats.
	OrphanMarkerTTL time.Duration
}

// Orchestrator runs the two booking flows. It holds no slot across the
// external payment step; the guard is consulted once, after verification.
type Orchestrator struct {
	profiles  ProfileReader
	guard     Reserver
	gateway   payments.Gateway
	ledger    OrderLedger
	velocity  VelocityChecker
	incidents IncidentRecorder
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	opts      Options
	now       func() time.Time
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Profiles == nil {
		panic("booking: profile reader cannot be nil")
	}
	if deps.Guard == nil {
		panic("booking: reservation guard cannot be nil")
	}
	if deps.Gateway == nil {
		panic("booking: payment gateway cannot be nil")
	}
	if deps.Ledger == nil {
		panic("booking: order ledger cannot be nil")
	}
	if deps.Incidents == nil {
		panic("booking: incident recorder cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.OrderTTL <= 0 {
		opts.OrderTTL = 30 * time.Minute
	}
	if opts.OrphanMarkerTTL <= 0 {
		opts.OrphanMarkerTTL = 7 * 24 * time.Hour
	}
	return &Orchestrator{
		profiles:  deps.Profiles,
		guard:     deps.Guard,
		gateway:   deps.Gateway,
		ledger:    deps.Ledger,
		velocity:  deps.Velocity,
		incidents: deps.Incidents,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
		now:       time.Now,
	}
}

// BookRequest selects one generated slot.
type BookRequest struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	SessionTypeID  uuid.UUID `json:"session_type_id"`
	StartsAt       time.Time `json:"appointment_date_time"`
}

func (r BookRequest) validate() error {
	switch {
	case r.ProfessionalID == uuid.Nil:
		return invalid("professional_id", "is required")
	case r.SessionTypeID == uuid.Nil:
		return invalid("session_type_id", "is required")
	case r.StartsAt.IsZero():
		return invalid("appointment_date_time", "is required")
	}
	return nil
}

// Checkout is what the client needs to complete payment out of band.
type Checkout struct {
	OrderID        string    `json:"order_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"key_id,omitempty"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	SessionTypeID  uuid.UUID `json:"session_type_id"`
	StartsAt       time.Time `json:"appointment_date_time"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Callback is the gateway's success payload relayed by the client.
type Callback struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

func (c Callback) validate() error {
	switch {
	case c.OrderID == "":
		return invalid("order_id", "is required")
	case c.PaymentID == "":
		return invalid("payment_id", "is required")
	case c.Signature == "":
		return invalid("signature", "is required")
	}
	return nil
}

// PaymentResult reports the appointment for a verified payment. Replayed is
// set when the payment had already been redeemed.
type PaymentResult struct {
	Appointment appointments.Appointment
	Replayed    bool
}

// BookDirect books a pro-bono slot as confirmed. A taken slot yields
// ErrBookingConflict and leaves nothing behind.
func (o *Orchestrator) BookDirect(ctx context.Context, caller identity.Principal, req BookRequest) (appointments.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.direct")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.professional_id", req.ProfessionalID.String()),
		attribute.String("booking.session_type_id", req.SessionTypeID.String()),
	)

	if !caller.Is(identity.RoleClient) {
		return appointments.Appointment{}, ErrForbidden
	}
	st, err := o.resolveSlot(ctx, req)
	if err != nil {
		return appointments.Appointment{}, err
	}
	if !st.IsProBono {
		return appointments.Appointment{}, invalid("session_type_id", "session requires payment")
	}

	appt, err := o.guard.Reserve(ctx, appointments.ReserveRequest{
		Entry:          appointments.EntryDirect,
		ProfessionalID: req.ProfessionalID,
		ClientID:       caller.ID,
		StartsAt:       req.StartsAt,
		Session:        appointments.SnapshotOf(st),
	})
	if errors.Is(err, appointments.ErrSlotTaken) {
		return appointments.Appointment{}, fmt.Errorf("%w: %v", ErrBookingConflict, err)
	}
	if err != nil {
		span.RecordError(err)
		return appointments.Appointment{}, fmt.Errorf("booking: reserve: %w", err)
	}
	return appt, nil
}

// CreateOrder opens a gateway order sized to the session price and records
// the intent it pays for. The slot is not held.
func (o *Orchestrator) CreateOrder(ctx context.Context, caller identity.Principal, req BookRequest) (Checkout, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.professional_id", req.ProfessionalID.String()),
		attribute.String("booking.session_type_id", req.SessionTypeID.String()),
	)

	if !caller.Is(identity.RoleClient) {
		return Checkout{}, ErrForbidden
	}
	st, err := o.resolveSlot(ctx, req)
	if err != nil {
		return Checkout{}, err
	}
	if st.IsProBono {
		return Checkout{}, invalid("session_type_id", "pro-bono sessions are booked directly")
	}

	if o.velocity != nil {
		result, err := o.velocity.CheckOrderVelocity(ctx, caller.ID)
		if err == nil && result != nil && !result.Allowed {
			return Checkout{}, fmt.Errorf("%w: %s", ErrRateLimited, result.Message)
		}
	}

	available, err := o.guard.IsAvailable(ctx, req.ProfessionalID, req.StartsAt)
	if err != nil {
		span.RecordError(err)
		return Checkout{}, fmt.Errorf("booking: availability check: %w", err)
	}
	if !available {
		return Checkout{}, ErrBookingConflict
	}

	startsAt := req.StartsAt.UTC()
	order, err := o.gateway.CreateOrder(ctx, payments.OrderRequest{
		Amount:   st.Price,
		Currency: o.opts.Currency,
		Notes: map[string]string{
			"client_id":       caller.ID.String(),
			"professional_id": req.ProfessionalID.String(),
			"session_type_id": st.ID.String(),
			"starts_at":       startsAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("payment order creation failed", "error", err, "client_id", caller.ID, "professional_id", req.ProfessionalID)
		return Checkout{}, fmt.Errorf("%w: %v", ErrUpstreamGateway, err)
	}

	now := o.now().UTC()
	intent := payments.OrderIntent{
		OrderID:         order.ID,
		ClientID:        caller.ID,
		ProfessionalID:  req.ProfessionalID,
		SessionTypeID:   st.ID,
		SessionName:     st.Name,
		DurationMinutes: st.DurationMinutes,
		StartsAt:        startsAt,
		Amount:          st.Price,
		Currency:        o.opts.Currency,
		CreatedAt:       now,
	}
	if err := o.ledger.Record(ctx, intent, o.opts.OrderTTL); err != nil {
		span.RecordError(err)
		o.logger.Error("order intent not recorded", "error", err, "order_id", order.ID)
		return Checkout{}, fmt.Errorf("%w: %v", ErrUpstreamGateway, err)
	}

	o.logger.Info("payment order opened",
		"order_id", order.ID,
		"client_id", caller.ID,
		"professional_id", req.ProfessionalID,
		"starts_at", startsAt,
		"amount", st.Price,
	)
	return Checkout{
		OrderID:        order.ID,
		Amount:         st.Price,
		Currency:       o.opts.Currency,
		KeyID:          o.opts.PublicKeyID,
		ProfessionalID: req.ProfessionalID,
		SessionTypeID:  st.ID,
		StartsAt:       startsAt,
		ExpiresAt:      now.Add(o.opts.OrderTTL),
	}, nil
}

// ConfirmPayment verifies the callback and then reserves exactly once. A
// slot lost during the payment window is returned as *PostPaymentError and
// recorded for refund.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, caller identity.Principal, cb Callback) (PaymentResult, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.confirm_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("payments.order_id", cb.OrderID),
		attribute.String("payments.payment_id", cb.PaymentID),
	)

	if !caller.Is(identity.RoleClient) {
		return PaymentResult{}, ErrForbidden
	}
	if err := cb.validate(); err != nil {
		return PaymentResult{}, err
	}

	if !o.gateway.VerifyCallback(cb.OrderID, cb.PaymentID, cb.Signature) {
		o.metrics.ObserveVerification(false)
		o.logger.Warn("payment callback signature mismatch",
			"security_event", "payment_signature_mismatch",
			"order_id", cb.OrderID,
			"payment_id", cb.PaymentID,
			"client_id", caller.ID,
		)
		return PaymentResult{}, ErrPaymentVerificationFailed
	}
	o.metrics.ObserveVerification(true)

	// Replays resolve from the appointment itself; the intent may have expired.
	if existing, ok, err := o.redeemed(ctx, caller, cb.PaymentID); err != nil || ok {
		return existing, err
	}

	intent, err := o.ledger.Lookup(ctx, cb.OrderID)
	if errors.Is(err, payments.ErrIntentNotFound) {
		o.recordOrphan(ctx, cb, payments.OrderIntent{OrderID: cb.OrderID, ClientID: caller.ID}, "order_intent_missing")
		return PaymentResult{}, ErrOrderNotFound
	}
	if err != nil {
		span.RecordError(err)
		return PaymentResult{}, fmt.Errorf("%w: %v", ErrUpstreamGateway, err)
	}
	if intent.ClientID != caller.ID {
		o.logger.Warn("payment callback from a different client",
			"security_event", "payment_client_mismatch",
			"order_id", cb.OrderID,
			"client_id", caller.ID,
		)
		return PaymentResult{}, ErrForbidden
	}

	appt, err := o.guard.Reserve(ctx, appointments.ReserveRequest{
		Entry:          appointments.EntryPaymentVerified,
		ProfessionalID: intent.ProfessionalID,
		ClientID:       intent.ClientID,
		StartsAt:       intent.StartsAt,
		Session: appointments.SessionSnapshot{
			SessionTypeID:   intent.SessionTypeID,
			Name:            intent.SessionName,
			DurationMinutes: intent.DurationMinutes,
			Price:           intent.Amount,
		},
		PaymentReference: cb.PaymentID,
	})
	switch {
	case err == nil:
		return PaymentResult{Appointment: appt}, nil
	case errors.Is(err, appointments.ErrPaymentRedeemed), errors.Is(err, appointments.ErrSlotTaken):
		// A concurrent replay of the same payment may surface as either constraint.
		if existing, ok, lookupErr := o.redeemed(ctx, caller, cb.PaymentID); lookupErr != nil || ok {
			return existing, lookupErr
		}
		if errors.Is(err, appointments.ErrPaymentRedeemed) {
			return PaymentResult{}, fmt.Errorf("booking: reserve: %w", err)
		}
	default:
		span.RecordError(err)
		o.logger.Error("payment captured but appointment not saved",
			"reconciliation", "refund_required",
			"error", err,
			"order_id", cb.OrderID,
			"payment_id", cb.PaymentID,
			"client_id", intent.ClientID,
			"professional_id", intent.ProfessionalID,
			"starts_at", intent.StartsAt,
		)
		o.recordOrphan(ctx, cb, intent, "reservation_failed")
		return PaymentResult{}, fmt.Errorf("booking: reserve: %w", err)
	}

	lost := &PostPaymentError{
		OrderID:        cb.OrderID,
		PaymentID:      cb.PaymentID,
		ClientID:       intent.ClientID,
		ProfessionalID: intent.ProfessionalID,
		StartsAt:       intent.StartsAt,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
	}
	o.metrics.ObservePostPaymentConflict()
	span.SetAttributes(attribute.Bool("booking.post_payment_conflict", true))
	o.logger.Error("payment captured but slot was taken",
		"reconciliation", "refund_required",
		"order_id", cb.OrderID,
		"payment_id", cb.PaymentID,
		"client_id", intent.ClientID,
		"professional_id", intent.ProfessionalID,
		"starts_at", intent.StartsAt,
		"amount", intent.Amount,
		"currency", intent.Currency,
	)
	o.recordOrphan(ctx, cb, intent, "slot_taken")
	return PaymentResult{}, lost
}

func (o *Orchestrator) redeemed(ctx context.Context, caller identity.Principal, paymentID string) (PaymentResult, bool, error) {
	existing, err := o.guard.FindByPaymentReference(ctx, paymentID)
	if errors.Is(err, appointments.ErrNotFound) {
		return PaymentResult{}, false, nil
	}
	if err != nil {
		return PaymentResult{}, false, fmt.Errorf("booking: lookup payment: %w", err)
	}
	if existing.ClientID != caller.ID {
		return PaymentResult{}, false, ErrForbidden
	}
	return PaymentResult{Appointment: existing, Replayed: true}, true, nil
}

func (o *Orchestrator) resolveSlot(ctx context.Context, req BookRequest) (schedule.SessionType, error) {
	if err := req.validate(); err != nil {
		return schedule.SessionType{}, err
	}
	profile, err := o.profiles.Profile(ctx, req.ProfessionalID)
	if err != nil {
		return schedule.SessionType{}, fmt.Errorf("booking: load profile: %w", err)
	}
	st, ok := profile.SessionType(req.SessionTypeID)
	if !ok {
		return schedule.SessionType{}, invalid("session_type_id", "not offered by this professional")
	}
	if _, ok := profile.FindSlot(st.ID, req.StartsAt, o.opts.Location); !ok {
		return schedule.SessionType{}, invalid("appointment_date_time", "not an available slot")
	}
	return st, nil
}

// recordOrphan writes one reconciliation event per verified payment that
// produced no appointment; replays of the same payment are skipped. A failed
// write is logged and never masks the caller-facing error.
func (o *Orchestrator) recordOrphan(ctx context.Context, cb Callback, intent payments.OrderIntent, reason string) {
	first, err := o.ledger.MarkOrphaned(ctx, cb.PaymentID, o.opts.OrphanMarkerTTL)
	if err != nil {
		// Fall through; the event id dedupes downstream.
		o.logger.Warn("orphan marker unavailable", "error", err, "payment_id", cb.PaymentID)
	} else if !first {
		o.logger.Info("orphaned payment already recorded",
			"order_id", cb.OrderID,
			"payment_id", cb.PaymentID,
			"reason", reason,
		)
		return
	}

	event := events.PaymentOrphanedV1{
		EventID:        events.PaymentOrphanedEventID(cb.PaymentID).String(),
		OrderID:        cb.OrderID,
		PaymentID:      cb.PaymentID,
		ClientID:       intent.ClientID,
		ProfessionalID: intent.ProfessionalID,
		StartsAt:       intent.StartsAt,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		Reason:         reason,
		OccurredAt:     o.now().UTC(),
	}
	trace.SpanFromContext(ctx).AddEvent("payment.orphaned", trace.WithAttributes(
		attribute.String("payment.order_id", cb.OrderID),
		attribute.String("payment.orphan_reason", reason),
	))
	if _, err := o.incidents.Insert(ctx, intent.ClientID, events.TypePaymentOrphaned, event); err != nil {
		o.logger.Error("failed to record orphaned payment",
			"reconciliation", "refund_required",
			"error", err,
			"order_id", cb.OrderID,
			"payment_id", cb.PaymentID,
			"reason", reason,
		)
	}
}
