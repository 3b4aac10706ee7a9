package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jdsantos/quakewatch/internal/monitor"
)

// EventStore persists seismic events. It assumes a table schema like:
// CREATE TABLE seismic_events (
//
//	id BIGSERIAL PRIMARY KEY,
//	identifier TEXT NOT NULL UNIQUE,
//	magnitude DOUBLE PRECISION NOT NULL,
//	location TEXT NOT NULL,
//	lat DOUBLE PRECISION,
//	lon DOUBLE PRECISION,
//	depth DOUBLE PRECISION NOT NULL,
//	occurred_at TIMESTAMPTZ NOT NULL,
//	processed BOOLEAN NOT NULL DEFAULT FALSE,
//	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//
// );
type EventStore struct {
	db *sqlx.DB
}

// NewEventStore builds an EventStore.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// FindByIdentifier returns the event with the given identifier.
func (s *EventStore) FindByIdentifier(ctx context.Context, identifier string) (monitor.Event, error) {
	var e monitor.Event
	query := `
		SELECT id, identifier, magnitude, location, lat, lon, depth, occurred_at, processed, recorded_at
		FROM seismic_events
		WHERE identifier = $1
	`
	if err := s.db.GetContext(ctx, &e, query, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.Event{}, monitor.ErrNotFound
		}
		return monitor.Event{}, fmt.Errorf("find event by identifier: %w", err)
	}
	return e, nil
}

// Create inserts a new event row. The identifier is unique at the storage
// layer, so a concurrent insert of the same event surfaces as
// monitor.ErrDuplicateIdentifier and the caller re-reads the winner's row.
func (s *EventStore) Create(ctx context.Context, e monitor.Event) (monitor.Event, error) {
	query := `
		INSERT INTO seismic_events (identifier, magnitude, location, lat, lon, depth, occurred_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, recorded_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		e.Identifier,
		e.Magnitude,
		e.Location,
		e.Lat,
		e.Lon,
		e.DepthKm,
		e.OccurredAt,
		e.Processed,
	).Scan(&e.ID, &e.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return monitor.Event{}, monitor.ErrDuplicateIdentifier
		}
		return monitor.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// MarkProcessed flips the processed flag for the given event row.
func (s *EventStore) MarkProcessed(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE seismic_events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event processed rows: %w", err)
	}
	if rows == 0 {
		return monitor.ErrNotFound
	}
	return nil
}

// Latest returns the most recently recorded event.
func (s *EventStore) Latest(ctx context.Context) (monitor.Event, error) {
	var e monitor.Event
	query := `
		SELECT id, identifier, magnitude, location, lat, lon, depth, occurred_at, processed, recorded_at
		FROM seismic_events
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	if err := s.db.GetContext(ctx, &e, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.Event{}, monitor.ErrNotFound
		}
		return monitor.Event{}, fmt.Errorf("latest event: %w", err)
	}
	return e, nil
}
