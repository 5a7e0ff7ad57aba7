package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records outbox events a consumer already acted on, so
// at-least-once delivery does not repeat side effects like e-mails.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool rowQuerier) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

// AlreadyProcessed checks if the consumer has seen this event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE consumer = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, consumer, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id for the consumer, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
