/*
Package sqlite provides the durable archive for events and audit rows.

PURPOSE:
  The in-memory repository is authoritative for live reads; this package
  keeps a durable, append-only copy of everything that happened: every
  domain event published on the bus and every audit row the repository
  writes. Useful for post-hoc inspection and for surviving restarts of
  the demo server.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on either table
  - No DELETE statements on either table
  - Corrections are new rows

KEY TABLES:
  events:     One row per published domain event, payload as JSON
  audit_logs: One row per repository mutation, old/new values as JSON

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  archive, err := sqlite.Open("./data/exchange.db")
  if err != nil {
      log.Fatal(err)
  }
  defer archive.Close()

  stop := archive.Attach(bus)          // mirror every bus event
  repo := store.New(bus, store.WithAuditSink(archive))

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - events/bus.go: the source of archived events
  - store/store.go: the AuditSink this package implements
*/
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
)

// Archive is the durable event and audit store. Use ":memory:" as the path
// for an in-memory database in tests.
type Archive struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates the archive, migrating the schema if needed.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	schema := `
	-- Events (append-only mirror of the bus)
	CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		version INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		data_json TEXT NOT NULL,
		user_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		archived_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_aggregate
		ON events(aggregate_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_type
		ON events(event_type);

	-- Audit rows (append-only mirror of the repository audit trail)
	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		drop_ticket_id TEXT,
		user_id TEXT,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		old_values_json TEXT,
		new_values_json TEXT,
		reason TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_ticket
		ON audit_logs(drop_ticket_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_logs(entity_type, entity_id);
	`

	_, err := a.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT ARCHIVE
// =============================================================================

// Attach subscribes the archive to every event type on bus. The returned
// function detaches it. Write failures are swallowed here; the bus contract
// forbids a subscriber from disturbing dispatch.
func (a *Archive) Attach(bus *events.Bus) func() {
	return bus.Subscribe(events.Wildcard, func(ev events.Event) {
		_ = a.SaveEvent(ev)
	})
}

// SaveEvent appends one event row.
func (a *Archive) SaveEvent(ev events.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	query := `
		INSERT INTO events
		(event_id, event_type, aggregate_id, aggregate_type, version, timestamp,
		 data_json, user_id, ip_address, user_agent, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = a.db.Exec(query,
		ev.EventID,
		string(ev.EventType),
		ev.AggregateID,
		ev.AggregateType,
		ev.Version,
		ev.Timestamp.Format(time.RFC3339Nano),
		string(dataJSON),
		nullString(ev.Metadata.UserID),
		nullString(ev.Metadata.IPAddress),
		nullString(ev.Metadata.UserAgent),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Same event replayed; the archive already has it.
			return nil
		}
		return fmt.Errorf("failed to archive event: %w", err)
	}
	return nil
}

// ArchivedEvent is one stored event row. The payload is kept as raw JSON;
// consumers that need typed access decode against the event type.
type ArchivedEvent struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
	UserID        string          `json:"userId,omitempty"`
}

// Events returns the newest archived events, most recent first.
func (a *Archive) Events(limit int) ([]ArchivedEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT event_id, event_type, aggregate_id, aggregate_type, version,
		       timestamp, data_json, user_id
		FROM events
		ORDER BY timestamp DESC
		LIMIT ?
	`

	return a.queryEvents(query, limit)
}

// EventsForAggregate returns the full archived history of one aggregate,
// oldest first.
func (a *Archive) EventsForAggregate(aggregateID string) ([]ArchivedEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT event_id, event_type, aggregate_id, aggregate_type, version,
		       timestamp, data_json, user_id
		FROM events
		WHERE aggregate_id = ?
		ORDER BY timestamp ASC
	`

	return a.queryEvents(query, aggregateID)
}

func (a *Archive) queryEvents(query string, args ...any) ([]ArchivedEvent, error) {
	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []ArchivedEvent
	for rows.Next() {
		var (
			ev        ArchivedEvent
			timestamp string
			dataJSON  string
			userID    sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.EventType, &ev.AggregateID, &ev.AggregateType,
			&ev.Version, &timestamp, &dataJSON, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		ev.Data = json.RawMessage(dataJSON)
		ev.UserID = userID.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT ARCHIVE (store.AuditSink)
// =============================================================================

// SaveAuditRow appends one audit row.
func (a *Archive) SaveAuditRow(row exchange.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	oldJSON, _ := json.Marshal(row.OldValues)
	newJSON, _ := json.Marshal(row.NewValues)

	query := `
		INSERT INTO audit_logs
		(id, drop_ticket_id, user_id, action, entity_type, entity_id,
		 old_values_json, new_values_json, reason, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := a.db.Exec(query,
		row.ID,
		nullString(row.DropTicketID),
		nullString(row.UserID),
		string(row.Action),
		string(row.EntityType),
		row.EntityID,
		string(oldJSON),
		string(newJSON),
		nullString(row.Reason),
		nullString(row.IPAddress),
		nullString(row.UserAgent),
		row.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("failed to archive audit row: %w", err)
	}
	return nil
}

// AuditRowsForTicket returns all archived audit rows for one ticket,
// oldest first.
func (a *Archive) AuditRowsForTicket(dropTicketID string) ([]exchange.AuditLog, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, drop_ticket_id, user_id, action, entity_type, entity_id,
		       old_values_json, new_values_json, reason, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE drop_ticket_id = ?
		ORDER BY created_at ASC
	`

	rows, err := a.db.Query(query, dropTicketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit rows: %w", err)
	}
	defer rows.Close()

	var out []exchange.AuditLog
	for rows.Next() {
		var (
			row                       exchange.AuditLog
			ticketID, userID          sql.NullString
			oldJSON, newJSON          string
			reason, ipAddr, userAgent sql.NullString
			createdAt                 string
		)
		if err := rows.Scan(&row.ID, &ticketID, &userID, &row.Action, &row.EntityType, &row.EntityID,
			&oldJSON, &newJSON, &reason, &ipAddr, &userAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		row.DropTicketID = ticketID.String
		row.UserID = userID.String
		row.Reason = reason.String
		row.IPAddress = ipAddr.String
		row.UserAgent = userAgent.String
		row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		row.UpdatedAt = row.CreatedAt
		if oldJSON != "" && oldJSON != "null" {
			json.Unmarshal([]byte(oldJSON), &row.OldValues)
		}
		if newJSON != "" && newJSON != "null" {
			json.Unmarshal([]byte(newJSON), &row.NewValues)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
