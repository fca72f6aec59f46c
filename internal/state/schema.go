package state

import (
	"database/sql"

	"github.com/llehouerou/adspeed/internal/db"
)

const currentSchemaVersion = 1

func initSchema(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = conn.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	return seed(conn)
}

// seed writes the first-install defaults. Existing values are never
// overwritten, so reopening the store keeps the counters.
func seed(conn *sql.DB) error {
	return db.WithTx(conn, func(tx *sql.Tx) error {
		for _, c := range AllCounters {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO counters (name, value) VALUES (?, 0)`, string(c)); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, ConsentKey, "false")
		return err
	})
}
