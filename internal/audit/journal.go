// Package audit records every browser action in a SQLite journal.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
	"github.com/roelfdiedericks/goclaw-browser/internal/paths"
)

const (
	// DefaultFileName is the journal database under the base directory.
	DefaultFileName = "browser-audit.db"
	dbOpenOptions   = "?_journal_mode=WAL&_busy_timeout=5000"

	// fixed width so created_at sorts lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Outcome values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one dispatched action.
type Entry struct {
	ID        string
	SessionID string
	Action    string
	Ref       string
	Label     string // element label, display only
	URL       string
	Outcome   string
	ErrorKind string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Journal is an append-only action log.
type Journal struct {
	db *sql.DB
}

// DefaultPath returns ~/.goclaw/browser-audit.db.
func DefaultPath() (string, error) {
	return paths.DataPath(DefaultFileName)
}

// Open opens (creating if needed) the journal at dbPath.
func Open(dbPath string) (*Journal, error) {
	if err := paths.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+dbOpenOptions)
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	L_debug("audit: journal opened", "path", dbPath)
	return &Journal{db: db}, nil
}

// Record appends e. ID and CreatedAt are filled in when empty.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO actions (id, session_id, action, ref, label, url, outcome, error_kind, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Action, e.Ref, e.Label, e.URL, e.Outcome, e.ErrorKind, e.Message,
		e.Duration.Milliseconds(), e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Action, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty sessionID
// matches every session.
func (j *Journal) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, action, ref, label, url, outcome, error_kind, message, duration_ms, created_at
		FROM actions`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Action, &e.Ref, &e.Label, &e.URL,
			&e.Outcome, &e.ErrorKind, &e.Message, &durationMS, &created); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(timeLayout, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
