package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/models"
)

// StatsStorage implements interfaces.StatsStorage on SQLite.
type StatsStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewStatsStorage creates a new statistics storage instance
func NewStatsStorage(db *SQLiteDB, logger arbor.ILogger) *StatsStorage {
	return &StatsStorage{db: db, logger: logger}
}

// Statistics aggregates the read-side counters in one round of queries.
func (s *StatsStorage) Statistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{
		QueriesByRegion: make(map[string]int),
	}
	db := s.db.DB()

	counters := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM queries`, &stats.TotalQueries},
		{`SELECT COUNT(*) FROM crawl_sessions`, &stats.TotalSessions},
		{`SELECT COUNT(*) FROM rentals`, &stats.TotalRentals},
		{`SELECT COUNT(*) FROM crawl_sessions WHERE finished_at IS NULL`, &stats.InterruptedSessions},
		{`SELECT COUNT(*) FROM queries WHERE watch_enabled = 1`, &stats.WatchedQueries},
		{`SELECT COUNT(*) FROM crawl_sessions WHERE notifications_sent = 1`, &stats.NotificationsSessions},
	}
	for _, c := range counters {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, &models.StorageError{Op: "statistics counter", Err: err}
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT region, COUNT(*) FROM queries GROUP BY region`)
	if err != nil {
		return nil, &models.StorageError{Op: "statistics by region", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var region string
		var count int
		if err := rows.Scan(&region, &count); err != nil {
			return nil, &models.StorageError{Op: "scan region count", Err: err}
		}
		stats.QueriesByRegion[region] = count
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "statistics by region", Err: err}
	}

	if err := s.fillFrequency(ctx, stats); err != nil {
		return nil, err
	}

	var lastCrawl sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(started_at) FROM crawl_sessions`).Scan(&lastCrawl); err != nil {
		return nil, &models.StorageError{Op: "statistics last crawl", Err: err}
	}
	if lastCrawl.Valid {
		stats.LastCrawlAt = time.Unix(lastCrawl.Int64, 0)
	}

	return stats, nil
}

// fillFrequency buckets sessions by how recently they started.
func (s *StatsStorage) fillFrequency(ctx context.Context, stats *models.Statistics) error {
	now := time.Now()
	buckets := []struct {
		since time.Time
		dest  *int
	}{
		{now.Add(-24 * time.Hour), &stats.CrawlFrequency.Last24Hours},
		{now.Add(-7 * 24 * time.Hour), &stats.CrawlFrequency.Last7Days},
		{now.Add(-30 * 24 * time.Hour), &stats.CrawlFrequency.Last30Days},
	}
	for _, b := range buckets {
		if err := s.db.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM crawl_sessions WHERE started_at >= ?`, b.since.Unix()).Scan(b.dest); err != nil {
			return &models.StorageError{Op: "statistics frequency", Err: err}
		}
	}
	if err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crawl_sessions WHERE started_at < ?`,
		now.Add(-30*24*time.Hour).Unix()).Scan(&stats.CrawlFrequency.Older); err != nil {
		return &models.StorageError{Op: "statistics frequency", Err: err}
	}
	return nil
}
