package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sathicare/booking-core/pkg/logging"
)

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	Type        string
	Payload     json.RawMessage
	Attempts    int
	CreatedAt   time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// Execer is satisfied by pgx pools and transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Append writes an event through exec, so callers can enlist it in their own
// transaction.
func Append(ctx context.Context, exec Execer, aggregateID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, aggregate_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.Exec(ctx, query, id, aggregateID, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

// DefaultMaxAttempts is how many failed deliveries an entry gets before it
// is parked.
const DefaultMaxAttempts = 10

// OutboxStore persists events for reliable delivery. Entries that fail
// maxAttempts times stay in the table undelivered and are no longer fetched.
type OutboxStore struct {
	pool        querier
	maxAttempts int
}

func NewOutboxStore(pool querier) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool, maxAttempts: DefaultMaxAttempts}
}

func (s *OutboxStore) WithMaxAttempts(n int) *OutboxStore {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

func (s *OutboxStore) MaxAttempts() int {
	return s.maxAttempts
}

func (s *OutboxStore) Insert(ctx context.Context, aggregateID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	return Append(ctx, s.pool, aggregateID, eventType, payload)
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < $2
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit, s.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.AggregateID, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// RecordFailure bumps the attempt counter and keeps the last error for triage.
func (s *OutboxStore) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, cause.Error()); err != nil {
		return fmt.Errorf("events: record failure: %w", err)
	}
	return nil
}

type outboxQueue interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	RecordFailure(ctx context.Context, id uuid.UUID, cause error) error
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     outboxQueue
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store outboxQueue, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// exhausted reports whether the store will stop fetching an entry after
// attempts failures. Stores without a cap never exhaust.
func (d *Deliverer) exhausted(attempts int) bool {
	capped, ok := d.store.(interface{ MaxAttempts() int })
	return ok && attempts >= capped.MaxAttempts()
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type, "attempts", entry.Attempts+1)
			if rerr := d.store.RecordFailure(ctx, entry.ID, err); rerr != nil {
				d.logger.Error("failed to record outbox failure", "error", rerr, "event_id", entry.ID)
				continue
			}
			if d.exhausted(entry.Attempts + 1) {
				d.logger.Error("outbox entry parked after repeated failures",
					"event_id", entry.ID,
					"aggregate_id", entry.AggregateID,
					"type", entry.Type,
					"attempts", entry.Attempts+1,
				)
			}
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
}
