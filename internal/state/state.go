// Package state persists the counters and the consent flag.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/llehouerou/adspeed/internal/db"
)

const (
	appName    = "adspeed"
	dbFileName = "adspeed.db"
)

// ErrUnknownCounter is returned for counter names outside Counter's values.
var ErrUnknownCounter = errors.New("unknown counter")

type Manager struct {
	db *sql.DB
}

// Open opens the store in the XDG data directory, creating it on first use.
func Open() (*Manager, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the store at path. db.Memory opens a throwaway store.
func OpenPath(path string) (*Manager, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}

	return &Manager{db: conn}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

// Path returns where Open keeps the database.
func Path() (string, error) {
	return getDBPath()
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
