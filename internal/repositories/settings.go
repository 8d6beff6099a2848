package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotistats/internal/shared"
)

// SettingsRepository stores string values by key in the settings table.
//
// It satisfies session.Storage.
type SettingsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSettingsRepository creates a new SettingsRepository with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db, now: time.Now}
}

// Get returns the value stored under key, or [shared.ErrSettingNotFound].
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", shared.ErrSettingNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value stored under key.
func (r *SettingsRepository) Set(key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, key, value, r.now()); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SettingsRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// UpdatedAt reports when key was last written.
func (r *SettingsRepository) UpdatedAt(key string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow("SELECT updated_at FROM settings WHERE key = ?", key).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", shared.ErrSettingNotFound, key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return updatedAt, nil
}
