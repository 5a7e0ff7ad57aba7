package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sathicare/booking-core/internal/identity"
	"github.com/sathicare/booking-core/internal/observability/metrics"
	"github.com/sathicare/booking-core/internal/rooms"
	"github.com/sathicare/booking-core/pkg/logging"
)

var appointmentsTracer = otel.Tracer("booking.internal.appointments")

// Guard is the only path that creates appointments. Exclusivity comes from
// the store's atomic insert, never from a prior availability read.
type Guard struct {
	store   Store
	rooms   rooms.Minter
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewGuard(store Store, minter rooms.Minter, m *metrics.BookingMetrics, logger *logging.Logger) *Guard {
	if store == nil {
		panic("appointments: store cannot be nil")
	}
	if minter == nil {
		panic("appointments: room minter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{store: store, rooms: minter, metrics: m, logger: logger, now: time.Now}
}

// ReserveRequest describes the appointment to create.
type ReserveRequest struct {
	Entry            Entry
	ProfessionalID   uuid.UUID
	ClientID         uuid.UUID
	StartsAt         time.Time
	Session          SessionSnapshot
	PaymentReference string
}

func (r ReserveRequest) validate() error {
	var errs []error
	if r.ProfessionalID == uuid.Nil {
		errs = append(errs, errors.New("professional id is required"))
	}
	if r.ClientID == uuid.Nil {
		errs = append(errs, errors.New("client id is required"))
	}
	if r.StartsAt.IsZero() {
		errs = append(errs, errors.New("start time is required"))
	}
	if r.Session.SessionTypeID == uuid.Nil || r.Session.DurationMinutes <= 0 {
		errs = append(errs, errors.New("session details are incomplete"))
	}
	if r.Entry.requiresPayment() && r.PaymentReference == "" {
		errs = append(errs, errors.New("payment reference is required for paid entry"))
	}
	if !r.Entry.requiresPayment() && r.PaymentReference != "" {
		errs = append(errs, errors.New("payment reference is not allowed for direct entry"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}
	return nil
}

// IsAvailable reports whether no active appointment holds the slot. The
// answer is advisory; only Reserve is authoritative.
func (g *Guard) IsAvailable(ctx context.Context, professionalID uuid.UUID, startsAt time.Time) (bool, error) {
	exists, err := g.store.ExistsActive(ctx, professionalID, startsAt.UTC())
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// BookedSlots returns confirmed start times for display.
func (g *Guard) BookedSlots(ctx context.Context, professionalID uuid.UUID) ([]time.Time, error) {
	return g.store.ConfirmedStarts(ctx, professionalID)
}

// Reserve atomically creates the appointment or returns a *ConflictError
// (matching ErrSlotTaken) when another active appointment holds the slot.
// Paid entries record the payment reference in the same insert.
func (g *Guard) Reserve(ctx context.Context, req ReserveRequest) (Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.entry", string(req.Entry)),
		attribute.String("booking.professional_id", req.ProfessionalID.String()),
		attribute.String("booking.starts_at", req.StartsAt.UTC().Format(time.RFC3339)),
	)

	status, err := req.Entry.InitialStatus()
	if err != nil {
		return Appointment{}, err
	}
	if err := req.validate(); err != nil {
		return Appointment{}, err
	}

	now := g.now().UTC()
	appt := Appointment{
		ID:               uuid.New(),
		ClientID:         req.ClientID,
		ProfessionalID:   req.ProfessionalID,
		Session:          req.Session,
		StartsAt:         req.StartsAt.UTC(),
		Status:           status,
		PaymentReference: req.PaymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if status == StatusConfirmed {
		url, err := g.rooms.Mint(ctx, appt.ID)
		if err != nil {
			span.RecordError(err)
			return Appointment{}, fmt.Errorf("appointments: mint video room: %w", err)
		}
		appt.VideoRoomURL = url
	}

	if err := g.store.Insert(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			g.metrics.ObserveReservation(string(req.Entry), "conflict")
			span.SetAttributes(attribute.Bool("booking.conflict", true))
			return Appointment{}, err
		}
		if errors.Is(err, ErrPaymentRedeemed) {
			g.metrics.ObserveReservation(string(req.Entry), "replay")
			return Appointment{}, err
		}
		g.metrics.ObserveReservation(string(req.Entry), "error")
		span.RecordError(err)
		return Appointment{}, err
	}

	g.metrics.ObserveReservation(string(req.Entry), "reserved")
	g.logger.Info("appointment reserved",
		"appointment_id", appt.ID,
		"professional_id", appt.ProfessionalID,
		"client_id", appt.ClientID,
		"starts_at", appt.StartsAt,
		"entry", req.Entry,
		"status", appt.Status,
	)
	return appt, nil
}

// Get returns the appointment if the principal takes part in it.
func (g *Guard) Get(ctx context.Context, id uuid.UUID, actor identity.Principal) (Appointment, error) {
	a, err := g.store.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !participates(a, actor) {
		return Appointment{}, ErrNotParticipant
	}
	return a, nil
}

// FindByPaymentReference returns the appointment a payment created.
func (g *Guard) FindByPaymentReference(ctx context.Context, ref string) (Appointment, error) {
	return g.store.FindByPaymentReference(ctx, ref)
}

// ListFor returns the principal's appointments, newest first.
func (g *Guard) ListFor(ctx context.Context, p identity.Principal) ([]Appointment, error) {
	switch p.Role {
	case identity.RoleProfessional:
		return g.store.ListByProfessional(ctx, p.ID)
	case identity.RoleClient:
		return g.store.ListByClient(ctx, p.ID)
	default:
		return nil, ErrNotParticipant
	}
}

// Confirm moves a pending appointment to confirmed and mints its room if it
// has none. Both booking flows in this service insert confirmed rows, so
// pending rows only come from other writers of the appointments table
// (manual back-office inserts, a future hold-then-pay flow). Against a row
// that is already confirmed it fails with ErrInvalidTransition.
func (g *Guard) Confirm(ctx context.Context, id uuid.UUID, actor identity.Principal) (Appointment, error) {
	return g.transition(ctx, id, StatusConfirmed, actor, func(a Appointment) bool {
		return actor.Role == identity.RoleAdmin || actor.ID == a.ProfessionalID
	})
}

// Cancel releases the slot. Either participant may cancel.
func (g *Guard) Cancel(ctx context.Context, id uuid.UUID, actor identity.Principal) (Appointment, error) {
	return g.transition(ctx, id, StatusCancelled, actor, func(a Appointment) bool {
		return participates(a, actor)
	})
}

// Complete is the administrative terminal transition.
func (g *Guard) Complete(ctx context.Context, id uuid.UUID, actor identity.Principal) (Appointment, error) {
	return g.transition(ctx, id, StatusCompleted, actor, func(a Appointment) bool {
		return actor.Role == identity.RoleAdmin || (actor.Role == identity.RoleProfessional && actor.ID == a.ProfessionalID)
	})
}

func (g *Guard) transition(ctx context.Context, id uuid.UUID, to Status, actor identity.Principal, allowed func(Appointment) bool) (Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.appointment_id", id.String()),
		attribute.String("booking.to_status", string(to)),
	)

	current, err := g.store.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !allowed(current) {
		return Appointment{}, ErrNotParticipant
	}
	if err := checkTransition(current.Status, to); err != nil {
		return Appointment{}, err
	}

	var url string
	if to == StatusConfirmed && current.VideoRoomURL == "" {
		if url, err = g.rooms.Mint(ctx, current.ID); err != nil {
			span.RecordError(err)
			return Appointment{}, fmt.Errorf("appointments: mint video room: %w", err)
		}
	}

	updated, err := g.store.UpdateStatus(ctx, id, current.Status, to, url, actor.ID)
	if errors.Is(err, ErrStaleStatus) {
		return Appointment{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}

	g.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", current.Status,
		"to", updated.Status,
		"actor_id", actor.ID,
	)
	return updated, nil
}

func participates(a Appointment, p identity.Principal) bool {
	return p.Role == identity.RoleAdmin || p.ID == a.ClientID || p.ID == a.ProfessionalID
}
