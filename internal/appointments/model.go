// Package appointments owns the durable booking record, its lifecycle, and
// the reservation guard that serializes bookings per professional and time.
package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/sathicare/booking-core/internal/schedule"
)

// SessionSnapshot is a by-value copy of a session type taken at booking time.
// Later edits to the session type never reach it.
type SessionSnapshot struct {
	SessionTypeID   uuid.UUID `json:"session_type_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
	IsProBono       bool      `json:"is_pro_bono"`
}

// SnapshotOf copies st.
func SnapshotOf(st schedule.SessionType) SessionSnapshot {
	return SessionSnapshot{
		SessionTypeID:   st.ID,
		Name:            st.Name,
		DurationMinutes: st.DurationMinutes,
		Price:           st.Price,
		IsProBono:       st.IsProBono,
	}
}

// Appointment is never deleted, only moved to a terminal status.
type Appointment struct {
	ID               uuid.UUID       `json:"id"`
	ClientID         uuid.UUID       `json:"client_id"`
	ProfessionalID   uuid.UUID       `json:"professional_id"`
	Session          SessionSnapshot `json:"session_details"`
	StartsAt         time.Time       `json:"appointment_date_time"`
	Status           Status          `json:"status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	VideoRoomURL     string          `json:"video_room_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.Session.DurationMinutes) * time.Minute)
}
