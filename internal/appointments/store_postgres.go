package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sathicare/booking-core/internal/events"
)

const (
	uniqueViolation = "23505"

	activeSlotConstraint       = "appointments_active_slot_idx"
	paymentReferenceConstraint = "appointments_payment_reference_idx"
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore relies on a partial unique index over
// (professional_id, starts_at) WHERE status IN ('pending','confirmed') and
// writes lifecycle events to the outbox inside the same transaction.
type PostgresStore struct {
	db db
}

func NewPostgresStore(pool db) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool cannot be nil")
	}
	return &PostgresStore{db: pool}
}

const appointmentColumns = `id, client_id, professional_id, session_type_id, session_name, duration_minutes,
	price, is_pro_bono, starts_at, status, payment_reference, video_room_url, created_at, updated_at`

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	var status string
	var paymentRef, videoURL pgtype.Text
	err := row.Scan(
		&a.ID, &a.ClientID, &a.ProfessionalID,
		&a.Session.SessionTypeID, &a.Session.Name, &a.Session.DurationMinutes, &a.Session.Price, &a.Session.IsProBono,
		&a.StartsAt, &status, &paymentRef, &videoURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Appointment{}, err
	}
	a.Status = Status(status)
	a.PaymentReference = paymentRef.String
	a.VideoRoomURL = videoURL.String
	return a, nil
}

func (s *PostgresStore) Insert(ctx context.Context, appt Appointment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		appt.ID, appt.ClientID, appt.ProfessionalID,
		appt.Session.SessionTypeID, appt.Session.Name, appt.Session.DurationMinutes, appt.Session.Price, appt.Session.IsProBono,
		appt.StartsAt, string(appt.Status), text(appt.PaymentReference), text(appt.VideoRoomURL), appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == paymentReferenceConstraint {
				return ErrPaymentRedeemed
			}
			return &ConflictError{ProfessionalID: appt.ProfessionalID, StartsAt: appt.StartsAt}
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}

	if appt.Status == StatusConfirmed {
		if _, err := events.Append(ctx, tx, appt.ID, events.TypeAppointmentConfirmed, confirmedEvent(appt)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	a, err := scanAppointment(s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) FindByPaymentReference(ctx context.Context, ref string) (Appointment, error) {
	a, err := scanAppointment(s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE payment_reference = $1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: find by payment reference: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ExistsActive(ctx context.Context, professionalID uuid.UUID, startsAt time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE professional_id = $1 AND starts_at = $2 AND status IN ('pending', 'confirmed')
		)
	`, professionalID, startsAt).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointments: exists active: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ConfirmedStarts(ctx context.Context, professionalID uuid.UUID) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT starts_at FROM appointments
		WHERE professional_id = $1 AND status = 'confirmed'
		ORDER BY starts_at
	`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("appointments: confirmed starts: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("appointments: scan starts: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE client_id = $1 ORDER BY starts_at DESC`, clientID)
}

func (s *PostgresStore) ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE professional_id = $1 ORDER BY starts_at DESC`, professionalID)
}

func (s *PostgresStore) list(ctx context.Context, query string, id uuid.UUID) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, videoRoomURL string, actor uuid.UUID) (Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, video_room_url = COALESCE(video_room_url, $4), updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, string(from), string(to), text(videoRoomURL),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrStaleStatus
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: update status: %w", err)
	}

	eventType, payload := statusEvent(a, from, actor)
	if _, err := events.Append(ctx, tx, a.ID, eventType, payload); err != nil {
		return Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("appointments: commit: %w", err)
	}
	return a, nil
}

func confirmedEvent(a Appointment) events.AppointmentConfirmedV1 {
	return events.AppointmentConfirmedV1{
		EventID:          uuid.NewString(),
		AppointmentID:    a.ID,
		ClientID:         a.ClientID,
		ProfessionalID:   a.ProfessionalID,
		StartsAt:         a.StartsAt,
		DurationMinutes:  a.Session.DurationMinutes,
		SessionName:      a.Session.Name,
		Price:            a.Session.Price,
		IsProBono:        a.Session.IsProBono,
		PaymentReference: a.PaymentReference,
		VideoRoomURL:     a.VideoRoomURL,
		OccurredAt:       time.Now().UTC(),
	}
}

func statusEvent(a Appointment, from Status, actor uuid.UUID) (string, any) {
	if a.Status == StatusConfirmed {
		return events.TypeAppointmentConfirmed, confirmedEvent(a)
	}
	eventType := events.TypeAppointmentCancelled
	if a.Status == StatusCompleted {
		eventType = events.TypeAppointmentCompleted
	}
	return eventType, events.AppointmentStatusChangedV1{
		EventID:          uuid.NewString(),
		AppointmentID:    a.ID,
		ClientID:         a.ClientID,
		ProfessionalID:   a.ProfessionalID,
		StartsAt:         a.StartsAt,
		From:             string(from),
		To:               string(a.Status),
		ActorID:          actor,
		Refundable:       a.Status == StatusCancelled && a.PaymentReference != "",
		PaymentReference: a.PaymentReference,
		OccurredAt:       time.Now().UTC(),
	}
}
