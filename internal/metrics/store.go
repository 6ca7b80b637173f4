package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recipe-companion/internal/database"
)

// APICall records one backend call as seen by the client.
type APICall struct {
	// Endpoint is the route template, e.g. "/recipes/{id}".
	Endpoint string
	Method   string
	// Status is 0 when the call failed before a response arrived.
	Status    int
	Latency   time.Duration
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordCall saves a call to the database.
func (s *Store) RecordCall(ctx context.Context, c APICall) error {
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_calls (endpoint, method, status, latency_ms, timestamp) VALUES (?, ?, ?, ?, ?)`,
		c.Endpoint, c.Method, c.Status, c.Latency.Milliseconds(), ts.UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to record api call: %w", err)
	}
	return nil
}

// DailyUsage summarizes the calls of a single day.
type DailyUsage struct {
	Date         string
	Calls        int
	Errors       int
	AvgLatencyMS float64
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(database.TimeLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day,
		       COUNT(*),
		       SUM(CASE WHEN status = 0 OR status >= 400 THEN 1 ELSE 0 END),
		       AVG(latency_ms)
		FROM api_calls
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var (
			u   DailyUsage
			day sql.NullString
			avg sql.NullFloat64
		)
		if err := rows.Scan(&day, &u.Calls, &u.Errors, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		u.Date = "Unknown"
		if day.Valid {
			u.Date = day.String
		}
		if avg.Valid {
			u.AvgLatencyMS = avg.Float64
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(database.TimeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_calls WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up api calls: %w", err)
	}
	return res.RowsAffected()
}
