package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeAppointmentConfirmed = "booking.appointment_confirmed.v1"
	TypeAppointmentCancelled = "booking.appointment_cancelled.v1"
	TypeAppointmentCompleted = "booking.appointment_completed.v1"
	// TypePaymentOrphaned marks a verified payment that produced no
	// appointment and must be refunded by hand.
	TypePaymentOrphaned = "booking.payment_orphaned.v1"
)

type AppointmentConfirmedV1 struct {
	EventID          string    `json:"event_id"`
	AppointmentID    uuid.UUID `json:"appointment_id"`
	ClientID         uuid.UUID `json:"client_id"`
	ProfessionalID   uuid.UUID `json:"professional_id"`
	StartsAt         time.Time `json:"starts_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	SessionName      string    `json:"session_name"`
	Price            int64     `json:"price"`
	IsProBono        bool      `json:"is_pro_bono"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	VideoRoomURL     string    `json:"video_room_url,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type AppointmentStatusChangedV1 struct {
	EventID        string    `json:"event_id"`
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ClientID       uuid.UUID `json:"client_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	StartsAt       time.Time `json:"starts_at"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	ActorID        uuid.UUID `json:"actor_id,omitempty"`
	// Refundable is set when a paid appointment is cancelled.
	Refundable       bool      `json:"refundable,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// orphanedNamespace scopes PaymentOrphanedEventID.
var orphanedNamespace = uuid.MustParse("6f1d2c9e-4b7a-5e38-9c0d-2a8f7b3e1d64")

// PaymentOrphanedEventID is stable per gateway payment so every record of the
// same orphaned payment collapses onto one event.
func PaymentOrphanedEventID(paymentID string) uuid.UUID {
	return uuid.NewSHA1(orphanedNamespace, []byte(paymentID))
}

type PaymentOrphanedV1 struct {
	EventID        string    `json:"event_id"`
	OrderID        string    `json:"order_id"`
	PaymentID      string    `json:"payment_id"`
	ClientID       uuid.UUID `json:"client_id"`
	ProfessionalID uuid.UUID `json:"professional_id,omitempty"`
	StartsAt       time.Time `json:"starts_at,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}
