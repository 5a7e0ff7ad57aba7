package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var scheduleTracer = otel.Tracer("booking.internal.schedule")

// ErrForeignSessionType is returned when a save tries to claim another
// professional's session type id.
var ErrForeignSessionType = errors.New("schedule: session type belongs to another professional")

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists session types and weekly templates.
type PostgresStore struct {
	db db
}

// NewPostgresStore returns a store backed by a pgx pool.
func NewPostgresStore(pool db) *PostgresStore {
	if pool == nil {
		panic("schedule: pgx pool cannot be nil")
	}
	return &PostgresStore{db: pool}
}

const selectSessionTypes = `
	SELECT id, professional_id, name, duration_minutes, price, is_pro_bono
	FROM session_types
	WHERE professional_id = $1
	ORDER BY created_at, id
`

const selectAvailability = `
	SELECT weekday, start_minute, end_minute, session_type_id
	FROM availability_blocks
	WHERE professional_id = $1
	ORDER BY position
`

// Profile loads a fresh snapshot. A professional with nothing published gets
// an empty profile.
func (s *PostgresStore) Profile(ctx context.Context, professionalID uuid.UUID) (Profile, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.profile")
	defer span.End()
	span.SetAttributes(attribute.String("booking.professional_id", professionalID.String()))

	profile := Profile{ProfessionalID: professionalID}

	rows, err := s.db.Query(ctx, selectSessionTypes, professionalID)
	if err != nil {
		span.RecordError(err)
		return Profile{}, fmt.Errorf("schedule: query session types: %w", err)
	}
	for rows.Next() {
		var st SessionType
		if err := rows.Scan(&st.ID, &st.ProfessionalID, &st.Name, &st.DurationMinutes, &st.Price, &st.IsProBono); err != nil {
			rows.Close()
			return Profile{}, fmt.Errorf("schedule: scan session type: %w", err)
		}
		profile.SessionTypes = append(profile.SessionTypes, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Profile{}, fmt.Errorf("schedule: iterate session types: %w", err)
	}

	rows, err = s.db.Query(ctx, selectAvailability, professionalID)
	if err != nil {
		span.RecordError(err)
		return Profile{}, fmt.Errorf("schedule: query availability: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var weekday, start, end int
		var b TimeBlock
		if err := rows.Scan(&weekday, &start, &end, &b.SessionTypeID); err != nil {
			return Profile{}, fmt.Errorf("schedule: scan availability: %w", err)
		}
		b.Weekday, b.Start, b.End = Weekday(weekday), ClockTime(start), ClockTime(end)
		profile.Availability = append(profile.Availability, b)
	}
	if err := rows.Err(); err != nil {
		return Profile{}, fmt.Errorf("schedule: iterate availability: %w", err)
	}
	return profile, nil
}

const insertAvailabilityBlock = `
	INSERT INTO availability_blocks (professional_id, position, weekday, start_minute, end_minute, session_type_id)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// upsertSessionType only updates rows owned by the same professional; a
// foreign id affects zero rows.
const upsertSessionType = `
	INSERT INTO session_types (id, professional_id, name, duration_minutes, price, is_pro_bono)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name,
	    duration_minutes = EXCLUDED.duration_minutes,
	    price = EXCLUDED.price,
	    is_pro_bono = EXCLUDED.is_pro_bono,
	    updated_at = now()
	WHERE session_types.professional_id = EXCLUDED.professional_id
`

// SaveProfile validates p and replaces the professional's session types and
// template in one transaction.
func (s *PostgresStore) SaveProfile(ctx context.Context, p Profile) error {
	ctx, span := scheduleTracer.Start(ctx, "schedule.save_profile")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.professional_id", p.ProfessionalID.String()),
		attribute.Int("schedule.blocks", len(p.Availability)),
	)

	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schedule: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM availability_blocks WHERE professional_id = $1`, p.ProfessionalID); err != nil {
		return fmt.Errorf("schedule: clear availability: %w", err)
	}

	keep := make([]string, 0, len(p.SessionTypes))
	for _, st := range p.SessionTypes {
		tag, err := tx.Exec(ctx, upsertSessionType, st.ID, p.ProfessionalID, st.Name, st.DurationMinutes, st.Price, st.IsProBono)
		if err != nil {
			return fmt.Errorf("schedule: upsert session type: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrForeignSessionType, st.ID)
		}
		keep = append(keep, st.ID.String())
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM session_types
		WHERE professional_id = $1 AND NOT (id = ANY($2::uuid[]))
	`, p.ProfessionalID, keep); err != nil {
		return fmt.Errorf("schedule: prune session types: %w", err)
	}

	for i, b := range p.Availability {
		if _, err := tx.Exec(ctx, insertAvailabilityBlock, p.ProfessionalID, i, int(b.Weekday), int(b.Start), int(b.End), b.SessionTypeID); err != nil {
			return fmt.Errorf("schedule: insert availability: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("schedule: commit: %w", err)
	}
	return nil
}
