// Package runlog persists one row of run metadata per simulation run to a
// local SQLite database, purely for operator history and debugging. It is
// never consulted by route selection or propagation.
package runlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	topology_file TEXT NOT NULL,
	seed_count INTEGER NOT NULL,
	rank_count INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);`

// Entry is one row of run metadata.
type Entry struct {
	StartedAt    time.Time
	TopologyFile string
	SeedCount    int
	RankCount    int
	Duration     time.Duration
}

// Append opens (creating if necessary) the SQLite database at path,
// ensures the runs table exists, and inserts one row for entry. The
// database is closed before Append returns; nothing is kept open between
// runs, since this is written synchronously once, after propagation
// completes.
func Append(path string, entry Entry) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("runlog: opening %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("runlog: creating schema: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO runs (started_at, topology_file, seed_count, rank_count, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		entry.StartedAt.Format(time.RFC3339),
		entry.TopologyFile,
		entry.SeedCount,
		entry.RankCount,
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("runlog: inserting row: %w", err)
	}
	return nil
}
