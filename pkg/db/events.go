package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

// eventTimeLayout is fixed width so stored timestamps sort as text.
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Event is one observed switch state transition.
type Event struct {
	ID         int64     `json:"id"`
	Address    string    `json:"address"`
	Name       string    `json:"name"`
	Driver     string    `json:"driver"`
	On         bool      `json:"on"`
	ObservedAt time.Time `json:"observed_at"`
}

// EventStore records and lists switch transitions.
type EventStore interface {
	Append(ctx context.Context, e *Event) error
	Recent(ctx context.Context, address string, limit int) ([]*Event, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Events returns an EventStore for this database.
func (db *DB) Events() EventStore {
	return &eventStore{db: db}
}

type eventStore struct {
	db *DB
}

func (s *eventStore) Append(ctx context.Context, e *Event) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO switch_events (address, name, driver, state, observed_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Address, e.Name, e.Driver, e.On, e.ObservedAt.UTC().Format(eventTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to record switch event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// Recent lists the newest events first. An empty address lists every switch.
func (s *eventStore) Recent(ctx context.Context, address string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, address, name, driver, state, observed_at
		FROM switch_events
		WHERE ? = '' OR address = ?
		ORDER BY id DESC LIMIT ?
	`, address, address, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var observedAt string
		if err := rows.Scan(&e.ID, &e.Address, &e.Name, &e.Driver, &e.On, &observedAt); err != nil {
			return nil, err
		}
		e.ObservedAt, _ = time.Parse(eventTimeLayout, observedAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *eventStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM switch_events WHERE observed_at < ?`, before.UTC().Format(eventTimeLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// EventRecorder persists roster state transitions.
type EventRecorder struct {
	store   EventStore
	timeout time.Duration
}

// NewEventRecorder creates a recorder writing to store.
func NewEventRecorder(store EventStore) *EventRecorder {
	return &EventRecorder{store: store, timeout: 2 * time.Second}
}

// StateChanged records one transition. Failures are logged, never returned,
// so a slow disk cannot stall a poll cycle for long.
func (r *EventRecorder) StateChanged(info device.Info, on bool, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.store.Append(ctx, &Event{
		Address:    info.Address,
		Name:       info.Name,
		Driver:     info.Driver,
		On:         on,
		ObservedAt: at,
	})
	if err != nil {
		log.Warn().Err(err).Str("switch", info.Name).Msg("Failed to record switch event")
	}
}
