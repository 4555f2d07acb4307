// Package journal keeps an append-only SQLite history of session lifecycle
// and dispatch events. Sessions are deleted from the store when they are
// retired; the journal is what remains for auditing which reminders and
// cleanups actually went out.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/asheshgoplani/party-deck/internal/logging"
)

var journalLog = logging.ForComponent(logging.CompJournal)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// Entry is one recorded event.
type Entry struct {
	ID        string
	SessionID string
	Kind      string // create, edit, cancel, join, leave, reminder, reminder_dropped, cleanup, cleanup_deferred
	Detail    string
	At        time.Time
}

// DB wraps a SQLite journal database. Thread-safe for concurrent use within
// one process; WAL mode plus busy timeout keeps external readers safe.
type DB struct {
	db *sql.DB
}

// Open creates or opens the journal database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: busy timeout: %w", err)
	}

	return &DB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (j *DB) Close() error {
	_, _ = j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return j.db.Close()
}

// Migrate creates tables if they don't exist.
func (j *DB) Migrate() error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("journal: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			at         INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("journal: create events: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, at)
	`); err != nil {
		return fmt.Errorf("journal: create session index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("journal: set schema version: %w", err)
	}

	return tx.Commit()
}

// Append writes one entry. Zero ID and At are filled in.
func (j *DB) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	_, err := j.db.Exec(`
		INSERT INTO events (id, session_id, kind, detail, at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Kind, e.Detail, e.At.Unix())
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// RecordEvent implements party.EventRecorder. Failures are logged, never
// propagated: the journal is an audit trail, not part of the durability
// contract.
func (j *DB) RecordEvent(kind, sessionID, detail string) {
	if err := j.Append(Entry{SessionID: sessionID, Kind: kind, Detail: detail}); err != nil {
		journalLog.Warn("record_failed",
			slog.String("kind", kind),
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
	}
}

// Recent returns up to limit entries, newest first.
func (j *DB) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT id, session_id, kind, detail, at
		FROM events ORDER BY at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// BySession returns all entries for one session, oldest first.
func (j *DB) BySession(sessionID string) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, session_id, kind, detail, at
		FROM events WHERE session_id = ? ORDER BY at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("journal: by session: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountByKind returns how many events of one kind were recorded. Used by
// tests and the history command summary.
func (j *DB) CountByKind(kind string) (int, error) {
	var count int
	err := j.db.QueryRow("SELECT COUNT(*) FROM events WHERE kind = ?", kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.At = time.Unix(at, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
