package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// SettingsStore is a string key/value table for app preferences.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *SettingsStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.queryRow(`SELECT value FROM app_settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.exec(
		`INSERT INTO app_settings (setting_key, value) VALUES (?, ?) `+
			s.db.dialect.Upsert("setting_key", "value"),
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) Delete(key string) error {
	_, err := s.db.exec(`DELETE FROM app_settings WHERE setting_key = ?`, key)
	return err
}
