package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-companion/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestDailyUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	calls := []APICall{
		{Endpoint: "/recipes", Method: "GET", Status: 200, Latency: 100 * time.Millisecond, Timestamp: now},
		{Endpoint: "/recipes/{id}", Method: "GET", Status: 404, Latency: 50 * time.Millisecond, Timestamp: now},
		{Endpoint: "/recipes", Method: "GET", Status: 0, Latency: 30 * time.Millisecond, Timestamp: now},
		{Endpoint: "/recipes", Method: "GET", Status: 200, Latency: 10 * time.Millisecond, Timestamp: now.AddDate(0, 0, -20)},
	}
	for _, c := range calls {
		require.NoError(t, store.RecordCall(ctx, c))
	}

	usage, err := store.GetDailyUsage(ctx, 7)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, now.Format("2006-01-02"), usage[0].Date)
	assert.Equal(t, 3, usage[0].Calls)
	assert.Equal(t, 2, usage[0].Errors)
	assert.InDelta(t, 60.0, usage[0].AvgLatencyMS, 0.01)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.RecordCall(ctx, APICall{Endpoint: "/a", Method: "GET", Status: 200, Timestamp: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.RecordCall(ctx, APICall{Endpoint: "/b", Method: "GET", Status: 200, Timestamp: now.AddDate(0, 0, -31)}))
	require.NoError(t, store.RecordCall(ctx, APICall{Endpoint: "/c", Method: "GET", Status: 200, Timestamp: now}))

	n, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	usage, err := store.GetDailyUsage(ctx, 365)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].Calls)
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	h := GetSysHealth(dir)
	assert.Greater(t, h.Goroutines, 0)
	assert.Equal(t, "0 B", h.DataDiskSize)
}
