package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SettingInstallTime is the settings key holding the install time, in epoch
// milliseconds.
const SettingInstallTime = "install_time"

// Setting returns the value stored under key. ok is false if the key is not
// set.
func (s *SQLite) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// InstallTime implements search.InstallTimeSource.
func (s *SQLite) InstallTime(ctx context.Context) (time.Time, bool, error) {
	value, ok, err := s.Setting(ctx, SettingInstallTime)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing install time %q: %w", value, err)
	}
	return time.UnixMilli(ms), true, nil
}

// SetInstallTime records t as the install time, replacing any previous one.
func (s *SQLite) SetInstallTime(ctx context.Context, t time.Time) error {
	return s.SetSetting(ctx, SettingInstallTime, strconv.FormatInt(t.UnixMilli(), 10))
}

// EnsureInstallTime records t as the install time unless one is already
// set, and returns the stored value.
func (s *SQLite) EnsureInstallTime(ctx context.Context, t time.Time) (time.Time, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
	`, SettingInstallTime, strconv.FormatInt(t.UnixMilli(), 10), time.Now().UnixMilli())
	if err != nil {
		return time.Time{}, fmt.Errorf("writing install time: %w", err)
	}

	installed, _, err := s.InstallTime(ctx)
	return installed, err
}
