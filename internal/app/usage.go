package app

import (
	"context"

	"recipe-companion/internal/metrics"
)

// Usage summarizes backend calls per day, newest first.
func (a *App) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	return a.metricsStore.GetDailyUsage(ctx, days)
}

// CleanupMetrics deletes call records older than days. A non-positive
// value uses the configured retention.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = a.cfg.MetricsRetention
	}
	return a.metricsStore.Cleanup(ctx, days)
}

// Health reports process and data directory statistics.
func (a *App) Health() metrics.SysHealth {
	return metrics.GetSysHealth(a.cfg.DataDir)
}
