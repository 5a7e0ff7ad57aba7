package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotTaken means an active appointment already holds the
	// professional's timestamp.
	ErrSlotTaken = errors.New("appointments: slot already booked")
	// ErrPaymentRedeemed means the payment reference already created an appointment.
	ErrPaymentRedeemed = errors.New("appointments: payment already redeemed")
	ErrNotFound        = errors.New("appointments: not found")
	// ErrStaleStatus is returned by compare-and-set updates that lost a race.
	ErrStaleStatus        = errors.New("appointments: status changed concurrently")
	ErrInvalidReservation = errors.New("appointments: invalid reservation")
	ErrNotParticipant     = errors.New("appointments: caller is not a participant")
)

// ConflictError is the typed result of losing a slot.
type ConflictError struct {
	ProfessionalID uuid.UUID
	StartsAt       time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("appointments: slot %s for professional %s is no longer available", e.StartsAt.Format(time.RFC3339), e.ProfessionalID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotTaken
}

// Store is the durable appointment record. Insert is the only way
// appointments come into existence and must reject a second active
// appointment for the same (professional, starts_at) atomically, across
// processes.
type Store interface {
	Insert(ctx context.Context, appt Appointment) error
	Get(ctx context.Context, id uuid.UUID) (Appointment, error)
	FindByPaymentReference(ctx context.Context, ref string) (Appointment, error)
	ExistsActive(ctx context.Context, professionalID uuid.UUID, startsAt time.Time) (bool, error)
	ConfirmedStarts(ctx context.Context, professionalID uuid.UUID) ([]time.Time, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]Appointment, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Appointment, error)
	// UpdateStatus moves id from from to to only if it is still in from.
	// videoRoomURL is stored only when none is set yet.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, videoRoomURL string, actor uuid.UUID) (Appointment, error)
}
