package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recipe-companion/internal/database"
)

// SQLStore keeps device storage in the device_storage table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM device_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// SetMany upserts all values in one transaction.
func (s *SQLStore) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(database.TimeLayout)
	for k, v := range values {
		if err := checkKey(k); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO device_storage (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit storage: %w", err)
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM device_storage WHERE key = ?`, k); err != nil {
			return fmt.Errorf("failed to remove %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal: %w", err)
	}
	return nil
}

// Count reports how many keys are stored.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_storage`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count storage keys: %w", err)
	}
	return n, nil
}
