package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

type outboxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxEntry is a stored, not yet delivered event.
type OutboxEntry struct {
	ID         uuid.UUID
	Type       Type
	Payload    json.RawMessage
	OccurredAt time.Time
	Attempts   int32
}

// OutboxStore persists events in Postgres so a broker outage does not lose
// them.
type OutboxStore struct {
	pool outboxQuerier
}

// NewOutboxStore accepts a *pgxpool.Pool.
func NewOutboxStore(pool outboxQuerier) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func (s *OutboxStore) Insert(ctx context.Context, event Event) error {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		id = uuid.New()
	}
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	query := `
		INSERT INTO event_outbox (id, type, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, id, string(event.Type), data, event.OccurredAt); err != nil {
		return fmt.Errorf("events: insert outbox: %w", err)
	}
	return nil
}

// FetchPending returns undelivered entries that have failed fewer than
// maxAttempts times, oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit, maxAttempts int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, type, payload, occurred_at, attempts
		FROM event_outbox
		WHERE delivered_at IS NULL AND attempts < $2
		ORDER BY occurred_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var typ string
		var payload []byte
		if err := rows.Scan(&entry.ID, &typ, &payload, &entry.OccurredAt, &entry.Attempts); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Type = Type(typ)
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE event_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed counts a failed attempt and keeps the last error for operators.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	query := `
		UPDATE event_outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, cause.Error()); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

// OutboxPublisher satisfies Publisher by writing to the outbox; a Deliverer
// forwards the rows later.
type OutboxPublisher struct {
	store *OutboxStore
}

func NewOutboxPublisher(store *OutboxStore) *OutboxPublisher {
	return &OutboxPublisher{store: store}
}

func (p *OutboxPublisher) Publish(ctx context.Context, event Event) error {
	return p.store.Insert(ctx, event)
}

const (
	defaultDeliveryBatch    int32 = 25
	defaultDeliveryAttempts int32 = 10
	defaultDeliveryInterval       = 2 * time.Second
)

// Deliverer forwards outbox rows to the broker publisher. An event that
// fails maxAttempts times stays in the table, parked, until an operator
// resets its attempts.
type Deliverer struct {
	store       *OutboxStore
	next        Publisher
	logger      *logging.Logger
	batchSize   int32
	maxAttempts int32
	interval    time.Duration
}

func NewDeliverer(store *OutboxStore, next Publisher, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:       store,
		next:        next,
		logger:      logger,
		batchSize:   defaultDeliveryBatch,
		maxAttempts: defaultDeliveryAttempts,
		interval:    defaultDeliveryInterval,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithMaxAttempts(n int32) *Deliverer {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Start drains once, then on every tick until ctx is done.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.next == nil {
		return
	}
	d.drain(ctx)

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

// drain forwards one batch and reports how many entries went out and how
// many failed.
func (d *Deliverer) drain(ctx context.Context) (delivered, failed int) {
	entries, err := d.store.FetchPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0, 0
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		event := Event{ID: entry.ID.String(), Type: entry.Type, OccurredAt: entry.OccurredAt, Payload: entry.Payload}
		if err := d.next.Publish(ctx, event); err != nil {
			failed++
			attrs := []any{"error", err, "event_id", entry.ID, "type", entry.Type, "attempt", entry.Attempts + 1}
			if entry.Attempts+1 >= d.maxAttempts {
				d.logger.Error("outbox event parked after repeated failures", attrs...)
			} else {
				d.logger.Warn("outbox delivery failed", attrs...)
			}
			if err := d.store.MarkFailed(ctx, entry.ID, err); err != nil {
				d.logger.Error("failed to record outbox attempt", "error", err, "event_id", entry.ID)
			}
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, entry.ID)
		if err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
			continue
		}
		if ok {
			delivered++
		}
	}
	if delivered+failed > 0 {
		d.logger.Debug("outbox drained", "delivered", delivered, "failed", failed)
	}
	return delivered, failed
}
