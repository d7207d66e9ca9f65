package pii

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	detectors "github.com/medscribe/medscribe/pii/detectors"
	_ "modernc.org/sqlite"
)

// Memory retention constants
const (
	// DefaultMaxAuditEntries is the maximum number of audit entries to retain
	DefaultMaxAuditEntries = 5000
	// MaxAuditMessageSize caps a single stored message
	MaxAuditMessageSize = 50 * 1024
)

// AuditLog records what crossed the pipeline boundary. Messages are stored
// redacted and entities are stored without their values; the log can never be
// used to reconstruct personal data.
type AuditLog interface {
	// Record appends one audit event
	Record(ctx context.Context, direction string, message string, entities []detectors.Entity, blocked bool) error

	// Events retrieves audit events, newest first
	Events(ctx context.Context, limit int, offset int) ([]AuditEvent, error)

	// Count returns the total number of audit events
	Count(ctx context.Context) (int, error)

	// Clear removes all audit events
	Clear(ctx context.Context) error

	// Close closes the underlying store
	Close() error
}

// AuditEvent is a single recorded boundary crossing.
type AuditEvent struct {
	ID        int64              `json:"id"`
	CreatedAt string             `json:"created_at"`
	Direction string             `json:"direction"`
	Message   string             `json:"message"`
	Entities  []detectors.Entity `json:"entities"`
	Blocked   bool               `json:"blocked"`
}

// SQLiteAuditLog implements AuditLog on a local SQLite file
type SQLiteAuditLog struct {
	db         *sql.DB
	maxEntries int
}

// NewSQLiteAuditLog opens (creating if needed) the audit database at path.
func NewSQLiteAuditLog(ctx context.Context, path string) (*SQLiteAuditLog, error) {
	if path == "" {
		path = "medscribe_audit.db"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create audit database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		direction TEXT NOT NULL,
		message TEXT NOT NULL,
		entities TEXT NOT NULL,
		blocked INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create audit tables: %w", err)
	}

	return &SQLiteAuditLog{db: db, maxEntries: DefaultMaxAuditEntries}, nil
}

// Record appends one audit event and trims the log to the retention cap
func (a *SQLiteAuditLog) Record(ctx context.Context, direction string, message string, entities []detectors.Entity, blocked bool) error {
	if len(message) > MaxAuditMessageSize {
		message = message[:MaxAuditMessageSize]
	}

	// Entity values are excluded from marshaling; only type/span/confidence land on disk.
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	blockedInt := 0
	if blocked {
		blockedInt = 1
	}

	if _, err := a.db.ExecContext(ctx,
		`INSERT INTO audit_events (direction, message, entities, blocked) VALUES (?, ?, ?, ?)`,
		direction, message, string(entitiesJSON), blockedInt); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	if _, err := a.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE id NOT IN (SELECT id FROM audit_events ORDER BY id DESC LIMIT ?)`,
		a.maxEntries); err != nil {
		return fmt.Errorf("failed to trim audit log: %w", err)
	}

	return nil
}

// Events retrieves audit events, newest first
func (a *SQLiteAuditLog) Events(ctx context.Context, limit int, offset int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, created_at, direction, message, entities, blocked
		 FROM audit_events ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var event AuditEvent
		var entitiesJSON string
		var blockedInt int
		if err := rows.Scan(&event.ID, &event.CreatedAt, &event.Direction, &event.Message, &entitiesJSON, &blockedInt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &event.Entities); err != nil {
			event.Entities = nil
		}
		event.Blocked = blockedInt == 1
		events = append(events, event)
	}
	return events, rows.Err()
}

// Count returns the total number of audit events
func (a *SQLiteAuditLog) Count(ctx context.Context) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&count)
	return count, err
}

// Clear removes all audit events
func (a *SQLiteAuditLog) Clear(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM audit_events`)
	return err
}

// Close closes the underlying store
func (a *SQLiteAuditLog) Close() error {
	return a.db.Close()
}
