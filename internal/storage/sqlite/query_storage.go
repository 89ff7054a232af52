package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
)

// QueryStorage implements interfaces.QueryStorage on SQLite.
type QueryStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewQueryStorage creates a new query storage instance
func NewQueryStorage(db *SQLiteDB, logger arbor.ILogger) *QueryStorage {
	return &QueryStorage{db: db, logger: logger}
}

// UpsertQuery creates the query on first sight and refreshes last_seen_at and
// the description on every subsequent crawl.
func (s *QueryStorage) UpsertQuery(ctx context.Context, canonical *models.CanonicalQuery) (*models.Query, error) {
	paramsJSON, err := json.Marshal(canonical.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query params: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO queries (id, description, region, kind, stations, metro_line, price_min, price_max, params_json, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			last_seen_at = excluded.last_seen_at`,
		canonical.QueryID,
		canonical.Description,
		canonical.Params.Region,
		canonical.Params.Kind,
		strings.Join(canonical.Params.Stations, ","),
		canonical.Params.MetroLine,
		canonical.Params.PriceMin,
		canonical.Params.PriceMax,
		string(paramsJSON),
		now,
		now,
	)
	if err != nil {
		return nil, &models.StorageError{Op: "upsert query", Err: err}
	}

	return s.GetQuery(ctx, canonical.QueryID)
}

const queryColumns = `id, description, params_json, watch_enabled, COALESCE(watch_options, ''), first_seen_at, last_seen_at`

// GetQuery loads one query by id. Returns models.ErrQueryNotFound when the
// id is unknown.
func (s *QueryStorage) GetQuery(ctx context.Context, id string) (*models.Query, error) {
	row := s.db.DB().QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id)
	query, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrQueryNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get query", Err: err}
	}
	return query, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuery(row rowScanner) (*models.Query, error) {
	var query models.Query
	var paramsJSON string
	var watchEnabled int
	var firstSeen, lastSeen int64

	if err := row.Scan(&query.ID, &query.Description, &paramsJSON, &watchEnabled, &query.WatchOptions, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &query.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query params: %w", err)
	}

	query.WatchEnabled = watchEnabled != 0
	query.FirstSeenAt = time.Unix(firstSeen, 0)
	query.LastSeenAt = time.Unix(lastSeen, 0)
	return &query, nil
}

// ListQueries returns a filtered page of queries with their counters plus the
// total match count for pagination.
func (s *QueryStorage) ListQueries(ctx context.Context, opts *interfaces.QueryListOptions) ([]*models.QuerySummary, int, error) {
	if opts == nil {
		opts = &interfaces.QueryListOptions{}
	}

	where := []string{"1=1"}
	var args []interface{}
	if opts.Region != "" {
		where = append(where, "q.region = ?")
		args = append(args, opts.Region)
	}
	if !opts.SinceDate.IsZero() {
		where = append(where, "q.last_seen_at >= ?")
		args = append(args, opts.SinceDate.Unix())
	}
	if opts.HasRentals {
		where = append(where, "EXISTS (SELECT 1 FROM query_rentals qr WHERE qr.query_id = q.id)")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queries q WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, &models.StorageError{Op: "count queries", Err: err}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	pageArgs := append(append([]interface{}{}, args...), limit, opts.Offset)

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT q.id, q.description, q.params_json, q.watch_enabled, COALESCE(q.watch_options, ''), q.first_seen_at, q.last_seen_at,
			(SELECT COUNT(*) FROM query_rentals qr WHERE qr.query_id = q.id),
			(SELECT COUNT(*) FROM crawl_sessions cs WHERE cs.query_id = q.id),
			COALESCE((SELECT MAX(cs.started_at) FROM crawl_sessions cs WHERE cs.query_id = q.id), 0)
		FROM queries q
		WHERE `+whereClause+`
		ORDER BY q.last_seen_at DESC
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, &models.StorageError{Op: "list queries", Err: err}
	}
	defer rows.Close()

	var summaries []*models.QuerySummary
	for rows.Next() {
		var summary models.QuerySummary
		var paramsJSON string
		var watchEnabled int
		var firstSeen, lastSeen, lastCrawl int64

		if err := rows.Scan(
			&summary.ID, &summary.Description, &paramsJSON, &watchEnabled, &summary.WatchOptions,
			&firstSeen, &lastSeen,
			&summary.RentalCount, &summary.SessionCount, &lastCrawl,
		); err != nil {
			return nil, 0, &models.StorageError{Op: "scan query summary", Err: err}
		}
		if err := json.Unmarshal([]byte(paramsJSON), &summary.Params); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal query params: %w", err)
		}
		summary.WatchEnabled = watchEnabled != 0
		summary.FirstSeenAt = time.Unix(firstSeen, 0)
		summary.LastSeenAt = time.Unix(lastSeen, 0)
		if lastCrawl > 0 {
			summary.LastCrawlAt = time.Unix(lastCrawl, 0)
		}
		summaries = append(summaries, &summary)
	}

	return summaries, total, rows.Err()
}

// FindSimilar scores every other query of the same region against the
// reference: 40 points for the shared region, up to 40 for station overlap,
// 20 for an overlapping price range. Queries sharing neither stations nor a
// price band are excluded.
func (s *QueryStorage) FindSimilar(ctx context.Context, id string, limit int) ([]*models.SimilarQuery, error) {
	reference, err := s.GetQuery(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE region = ? AND id != ?`,
		reference.Params.Region, id)
	if err != nil {
		return nil, &models.StorageError{Op: "find similar", Err: err}
	}
	defer rows.Close()

	var similar []*models.SimilarQuery
	for rows.Next() {
		candidate, err := scanQuery(rows)
		if err != nil {
			return nil, &models.StorageError{Op: "scan similar query", Err: err}
		}

		score := scoreSimilarity(reference.Params, candidate.Params)
		if score <= 40 {
			// Region alone is not similarity.
			continue
		}
		similar = append(similar, &models.SimilarQuery{Query: *candidate, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "find similar", Err: err}
	}

	sort.SliceStable(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
	if limit > 0 && len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// scoreSimilarity rates a same-region candidate 0-100.
func scoreSimilarity(a, b models.QueryParams) int {
	score := 40

	if len(a.Stations) > 0 && len(b.Stations) > 0 {
		shared := 0
		set := make(map[string]bool, len(a.Stations))
		for _, id := range a.Stations {
			set[id] = true
		}
		for _, id := range b.Stations {
			if set[id] {
				shared++
			}
		}
		union := len(a.Stations) + len(b.Stations) - shared
		if shared > 0 && union > 0 {
			score += 40 * shared / union
		}
	}

	if priceRangesOverlap(a, b) {
		score += 20
	}

	if score > 100 {
		score = 100
	}
	return score
}

// priceRangesOverlap treats a missing bound as open-ended. Two queries
// without any price bound do not count as overlapping.
func priceRangesOverlap(a, b models.QueryParams) bool {
	aHas := a.PriceMin != "" || a.PriceMax != ""
	bHas := b.PriceMin != "" || b.PriceMax != ""
	if !aHas || !bHas {
		return false
	}

	aMin, aMax := priceBounds(a)
	bMin, bMax := priceBounds(b)
	return aMin <= bMax && bMin <= aMax
}

func priceBounds(p models.QueryParams) (min, max float64) {
	min, max = 0, 1<<40
	if v, err := strconv.ParseFloat(p.PriceMin, 64); err == nil && p.PriceMin != "" {
		min = v
	}
	if v, err := strconv.ParseFloat(p.PriceMax, 64); err == nil && p.PriceMax != "" {
		max = v
	}
	return min, max
}

// SetWatch toggles scheduled re-crawling for a query, storing the option
// snapshot used by future scheduled crawls.
func (s *QueryStorage) SetWatch(ctx context.Context, id string, enabled bool, optionsJSON string) error {
	watchEnabled := 0
	if enabled {
		watchEnabled = 1
	}
	result, err := s.db.DB().ExecContext(ctx,
		`UPDATE queries SET watch_enabled = ?, watch_options = ? WHERE id = ?`,
		watchEnabled, optionsJSON, id)
	if err != nil {
		return &models.StorageError{Op: "set watch", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "set watch", Err: err}
	}
	if affected == 0 {
		return models.ErrQueryNotFound
	}
	return nil
}

// ListWatched returns every query with the watch flag enabled.
func (s *QueryStorage) ListWatched(ctx context.Context) ([]*models.Query, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE watch_enabled = 1 ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, &models.StorageError{Op: "list watched", Err: err}
	}
	defer rows.Close()

	var watched []*models.Query
	for rows.Next() {
		query, err := scanQuery(rows)
		if err != nil {
			return nil, &models.StorageError{Op: "scan watched query", Err: err}
		}
		watched = append(watched, query)
	}
	return watched, rows.Err()
}

// ClearQuery removes the query and everything reachable only through it:
// session links, sessions, query links, then the rentals (and their facets)
// no longer referenced by any remaining query.
func (s *QueryStorage) ClearQuery(ctx context.Context, id string) (*models.ClearResult, error) {
	if _, err := s.GetQuery(ctx, id); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, &models.StorageError{Op: "clear query", Err: err}
	}
	defer tx.Rollback()

	result := &models.ClearResult{}

	result.SessionLinks, err = execCount(tx, ctx,
		`DELETE FROM crawl_session_rentals WHERE session_id IN (SELECT id FROM crawl_sessions WHERE query_id = ?)`, id)
	if err != nil {
		return nil, &models.StorageError{Op: "clear session links", Err: err}
	}

	result.Sessions, err = execCount(tx, ctx, `DELETE FROM crawl_sessions WHERE query_id = ?`, id)
	if err != nil {
		return nil, &models.StorageError{Op: "clear sessions", Err: err}
	}

	result.QueryLinks, err = execCount(tx, ctx, `DELETE FROM query_rentals WHERE query_id = ?`, id)
	if err != nil {
		return nil, &models.StorageError{Op: "clear query links", Err: err}
	}

	// Rentals referenced by no remaining query are orphans. Their session
	// links from other queries' sessions must go first.
	const orphanFilter = `property_id IN (
		SELECT r.property_id FROM rentals r
		WHERE NOT EXISTS (SELECT 1 FROM query_rentals qr WHERE qr.property_id = r.property_id))`

	if _, err := tx.ExecContext(ctx, `DELETE FROM crawl_session_rentals WHERE `+orphanFilter); err != nil {
		return nil, &models.StorageError{Op: "clear orphan session links", Err: err}
	}

	result.MetroDistances, err = execCount(tx, ctx, `DELETE FROM metro_distances WHERE `+orphanFilter)
	if err != nil {
		return nil, &models.StorageError{Op: "clear orphan facets", Err: err}
	}

	result.Rentals, err = execCount(tx, ctx, `DELETE FROM rentals WHERE NOT EXISTS (
		SELECT 1 FROM query_rentals qr WHERE qr.property_id = rentals.property_id)`)
	if err != nil {
		return nil, &models.StorageError{Op: "clear orphan rentals", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queries WHERE id = ?`, id); err != nil {
		return nil, &models.StorageError{Op: "clear query row", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.StorageError{Op: "clear query", Err: err}
	}

	s.logger.Info().
		Str("query_id", id).
		Int("sessions", result.Sessions).
		Int("rentals", result.Rentals).
		Msg("Query cleared")

	return result, nil
}

func execCount(tx *sql.Tx, ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
