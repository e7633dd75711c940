package audit

import (
	"database/sql"
	"fmt"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
}

var migrations = []Migration{
	{
		Version: 1,
		Up: `
CREATE TABLE IF NOT EXISTS actions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    action TEXT NOT NULL,
    ref TEXT NOT NULL DEFAULT '',
    label TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,          -- "ok" or "error"
    error_kind TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id);
CREATE INDEX IF NOT EXISTS idx_actions_created ON actions(created_at DESC);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// InitSchema brings the journal schema up to date.
func InitSchema(db *sql.DB) error {
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		// no rows, or the table doesn't exist yet
		currentVersion = 0
	}

	for _, m := range migrations {
		if m.Version > currentVersion {
			L_debug("audit: applying migration", "version", m.Version)
			if _, err := db.Exec(m.Up); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
			currentVersion = m.Version
		}
	}

	L_debug("audit: schema initialized", "version", currentVersion)
	return nil
}
