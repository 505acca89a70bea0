package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
)

// EventStore implements event.Store backed by Postgres. Each tournament's
// trail is trimmed to maxEntries on append and filtered by retention on load.
type EventStore struct {
	db         *sqlx.DB
	clock      clock.Clock
	maxEntries int
	retention  time.Duration
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *sqlx.DB, clk clock.Clock, maxEntries int, retention time.Duration) *EventStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &EventStore{db: db, clock: clk, maxEntries: maxEntries, retention: retention}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO events (id, aggregate_id, type, data, version, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	touched := make(map[string]struct{})
	now := s.clock.Now()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		data := e.Data
		if len(data) == 0 {
			data = json.RawMessage(`{}`)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.AggregateID, e.Type, []byte(data), e.Version, e.Actor, e.CreatedAt); err != nil {
			return fmt.Errorf("inserting event (aggregate=%s, type=%s): %w", e.AggregateID, e.Type, err)
		}
		touched[e.AggregateID] = struct{}{}
	}

	if s.maxEntries > 0 {
		for id := range touched {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM events WHERE aggregate_id = $1 AND id NOT IN (
				   SELECT id FROM events WHERE aggregate_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
				 )`, id, s.maxEntries); err != nil {
				return fmt.Errorf("trimming events for %s: %w", id, err)
			}
		}
	}

	return tx.Commit()
}

func (s *EventStore) Load(ctx context.Context, aggregateID string, limit int) ([]event.Event, error) {
	var cutoff time.Time
	if s.retention > 0 {
		cutoff = s.clock.Now().Add(-s.retention)
	}
	if limit <= 0 {
		limit = s.maxEntries
	}
	if limit <= 0 {
		limit = 1000
	}

	var events []event.Event
	err := s.db.SelectContext(ctx, &events,
		`SELECT id, aggregate_id, type, data, version, actor, created_at
		 FROM events WHERE aggregate_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC, id DESC LIMIT $3`, aggregateID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return events, nil
}
