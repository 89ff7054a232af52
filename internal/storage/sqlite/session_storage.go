package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/models"
)

// SessionStorage implements interfaces.SessionStorage on SQLite.
type SessionStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new session storage instance
func NewSessionStorage(db *SQLiteDB, logger arbor.ILogger) *SessionStorage {
	return &SessionStorage{db: db, logger: logger}
}

// OpenSession records the start of a crawl and returns the new session id.
func (s *SessionStorage) OpenSession(ctx context.Context, queryID, optionsJSON string) (string, error) {
	sessionID := common.NewSessionID()
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO crawl_sessions (id, query_id, started_at, options_json)
		VALUES (?, ?, ?, ?)`,
		sessionID, queryID, time.Now().Unix(), optionsJSON)
	if err != nil {
		return "", &models.StorageError{Op: "open session", Err: err}
	}
	return sessionID, nil
}

// CloseSession writes the terminal state of a crawl. A session this is never
// called for stays open and counts as interrupted.
func (s *SessionStorage) CloseSession(ctx context.Context, sessionID string, summary *models.SessionSummary) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE crawl_sessions SET
			finished_at = ?,
			station_count = ?,
			multi_station = ?,
			total_listings = ?,
			new_listings = ?,
			notifications_sent = ?,
			error_count = ?
		WHERE id = ?`,
		time.Now().Unix(),
		summary.StationCount,
		boolToInt(summary.MultiStation),
		summary.TotalListings,
		summary.NewListings,
		boolToInt(summary.NotificationsSent),
		summary.ErrorCount,
		sessionID)
	if err != nil {
		return &models.StorageError{Op: "close session", Err: err}
	}
	return nil
}

// ListSessions returns the most recent sessions for a query, newest first.
func (s *SessionStorage) ListSessions(ctx context.Context, queryID string, limit int) ([]*models.CrawlSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, query_id, started_at, finished_at, station_count, multi_station,
			total_listings, new_listings, notifications_sent, error_count, COALESCE(options_json, '')
		FROM crawl_sessions
		WHERE query_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, queryID, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var sessions []*models.CrawlSession
	for rows.Next() {
		var session models.CrawlSession
		var startedAt int64
		var finishedAt sql.NullInt64
		var multiStation, notificationsSent int

		if err := rows.Scan(
			&session.ID, &session.QueryID, &startedAt, &finishedAt,
			&session.StationCount, &multiStation,
			&session.TotalListings, &session.NewListings,
			&notificationsSent, &session.ErrorCount, &session.Options,
		); err != nil {
			return nil, &models.StorageError{Op: "scan session", Err: err}
		}

		session.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			session.FinishedAt = time.Unix(finishedAt.Int64, 0)
		}
		session.MultiStation = multiStation != 0
		session.NotificationsSent = notificationsSent != 0
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
