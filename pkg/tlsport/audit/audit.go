// Package audit persists a per-connection record of TLS port lifecycle
// events (opened, unregistered, pipeline error) to Postgres, reusing
// pkg/persistence's connection pool rather than opening a second one.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shadowmesh/shadowmesh/pkg/persistence"
)

// Sink records connection lifecycle events for a set of TLS ports sharing
// one underlying database.
type Sink struct {
	db *sql.DB
}

// NewSink wires a Sink to store's connection pool and ensures the audit
// table exists.
func NewSink(store *persistence.PostgresStore) (*Sink, error) {
	s := &Sink{db: store.DB()}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("audit: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Sink) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tlsport_connection_events (
		id BIGSERIAL PRIMARY KEY,
		connection_id VARCHAR(128) NOT NULL,
		event VARCHAR(32) NOT NULL,
		detail TEXT,
		occurred_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_tlsport_events_connection_id ON tlsport_connection_events(connection_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordOpened logs that a connection's Port began servicing traffic.
func (s *Sink) RecordOpened(connectionID string) error {
	return s.record(connectionID, "opened", "")
}

// RecordUnregistered logs that a connection's Port was torn down.
func (s *Sink) RecordUnregistered(connectionID string) error {
	return s.record(connectionID, "unregistered", "")
}

// RecordError logs a connection-fatal pipeline error surfaced by
// Port.Run's pollErrors.
func (s *Sink) RecordError(connectionID string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return s.record(connectionID, "error", detail)
}

func (s *Sink) record(connectionID, event, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO tlsport_connection_events (connection_id, event, detail) VALUES ($1, $2, $3)`,
		connectionID, event, detail,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record %s event: %w", event, err)
	}
	return nil
}

// RecentEvents returns the most recent events for a connection, newest
// first, for operator-facing diagnostics.
func (s *Sink) RecentEvents(connectionID string, limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT event, detail, occurred_at FROM tlsport_connection_events
		 WHERE connection_id = $1
		 ORDER BY occurred_at DESC
		 LIMIT $2`,
		connectionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Event, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Event is one recorded connection lifecycle entry.
type Event struct {
	Event      string
	Detail     string
	OccurredAt time.Time
}
