package state

import (
	"database/sql"
	"errors"
	"strconv"
)

// ConsentKey stores whether trusted clicks through the debugger are allowed.
const ConsentKey = "debuggerConsentEnabled"

// Consent reports whether the user allowed trusted clicks. It is false until
// explicitly enabled.
func (m *Manager) Consent() (bool, error) {
	var raw string
	err := m.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, ConsentKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil //nolint:nilerr // a corrupt flag means no consent
	}
	return enabled, nil
}

// SetConsent stores the consent flag.
func (m *Manager) SetConsent(enabled bool) error {
	_, err := m.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, ConsentKey, strconv.FormatBool(enabled))
	return err
}
