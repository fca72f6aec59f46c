package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/llehouerou/adspeed/internal/db"
)

// Counter names a persisted counter. The values match the command names.
type Counter string

const (
	AdCounter      Counter = "adCounter"
	WarningCounter Counter = "warningCounter"
	ReloadCounter  Counter = "reloadCounter"
)

// AllCounters lists every counter in display order.
var AllCounters = []Counter{AdCounter, WarningCounter, ReloadCounter}

// Valid reports whether c is a known counter.
func (c Counter) Valid() bool {
	switch c {
	case AdCounter, WarningCounter, ReloadCounter:
		return true
	}
	return false
}

// Counters is a snapshot of every counter.
type Counters struct {
	Ads      int64 `json:"adCounter"`
	Warnings int64 `json:"warningCounter"`
	Reloads  int64 `json:"reloadCounter"`
}

// Get returns the value of c in the snapshot.
func (c Counters) Get(name Counter) int64 {
	switch name {
	case AdCounter:
		return c.Ads
	case WarningCounter:
		return c.Warnings
	case ReloadCounter:
		return c.Reloads
	}
	return 0
}

// Increment adds one to c and returns the new value.
func (m *Manager) Increment(c Counter) (int64, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCounter, c)
	}
	var value int64
	err := m.db.QueryRow(`
		INSERT INTO counters (name, value, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = value + 1,
			updated_at = excluded.updated_at
		RETURNING value
	`, string(c), time.Now().Unix()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", c, err)
	}
	return value, nil
}

// Counters returns every counter. Missing rows read as zero.
func (m *Manager) Counters() (Counters, error) {
	rows, err := m.db.Query(`SELECT name, value FROM counters`)
	if err != nil {
		return Counters{}, err
	}
	defer rows.Close()

	var out Counters
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return Counters{}, err
		}
		switch Counter(name) {
		case AdCounter:
			out.Ads = value
		case WarningCounter:
			out.Warnings = value
		case ReloadCounter:
			out.Reloads = value
		}
	}
	return out, rows.Err()
}

// ResetCounters sets every counter back to zero in one transaction.
func (m *Manager) ResetCounters() error {
	now := time.Now().Unix()
	return db.WithTx(m.db, func(tx *sql.Tx) error {
		for _, c := range AllCounters {
			_, err := tx.Exec(`
				INSERT INTO counters (name, value, updated_at) VALUES (?, 0, ?)
				ON CONFLICT(name) DO UPDATE SET value = 0, updated_at = excluded.updated_at
			`, string(c), now)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
