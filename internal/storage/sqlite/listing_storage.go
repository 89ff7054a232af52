package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/models"
)

// ListingStorage implements interfaces.ListingStorage on SQLite.
type ListingStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewListingStorage creates a new listing storage instance
func NewListingStorage(db *SQLiteDB, logger arbor.ILogger) *ListingStorage {
	return &ListingStorage{db: db, logger: logger}
}

// GetExistingPropertyIDs returns every property id ever linked to the query.
func (s *ListingStorage) GetExistingPropertyIDs(ctx context.Context, queryID string) (map[string]bool, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT property_id FROM query_rentals WHERE query_id = ?`, queryID)
	if err != nil {
		return nil, &models.StorageError{Op: "get existing property ids", Err: err}
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &models.StorageError{Op: "scan property id", Err: err}
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// PersistListings upserts the observed listings inside one transaction. A
// listing whose content hash is unchanged gets only a last_seen_at refresh;
// otherwise scalars are replaced and the distance facets rewritten. newIDs
// marks which listings this session introduced to the query.
func (s *ListingStorage) PersistListings(ctx context.Context, sessionID, queryID string, listings []*models.Listing, newIDs map[string]bool) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return &models.StorageError{Op: "persist listings", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	updated := 0

	for _, listing := range listings {
		changed, err := s.upsertRental(tx, ctx, listing, now)
		if err != nil {
			return err
		}
		if changed {
			updated++
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO query_rentals (query_id, property_id, first_linked_at)
			VALUES (?, ?, ?)`, queryID, listing.PropertyID, now); err != nil {
			return &models.StorageError{Op: "link query rental", Err: err}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO crawl_session_rentals (session_id, property_id, is_new)
			VALUES (?, ?, ?)`, sessionID, listing.PropertyID, boolToInt(newIDs[listing.PropertyID])); err != nil {
			return &models.StorageError{Op: "link session rental", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "persist listings", Err: err}
	}

	s.logger.Debug().
		Str("query_id", queryID).
		Int("listings", len(listings)).
		Int("changed", updated).
		Msg("Listings persisted")

	return nil
}

// upsertRental writes one listing row. Reports whether the row content
// actually changed.
func (s *ListingStorage) upsertRental(tx *sql.Tx, ctx context.Context, listing *models.Listing, now int64) (bool, error) {
	hash := listing.ContentHash()

	var existingHash string
	err := tx.QueryRowContext(ctx,
		`SELECT content_hash FROM rentals WHERE property_id = ?`, listing.PropertyID).Scan(&existingHash)
	switch {
	case err == sql.ErrNoRows:
		// first observation, fall through to insert
	case err != nil:
		return false, &models.StorageError{Op: "check rental hash", Err: err}
	case existingHash == hash:
		// Unchanged content only refreshes the observation timestamp.
		if _, err := tx.ExecContext(ctx,
			`UPDATE rentals SET last_seen_at = ? WHERE property_id = ?`, now, listing.PropertyID); err != nil {
			return false, &models.StorageError{Op: "refresh rental", Err: err}
		}
		return false, nil
	}

	tagsJSON, err := json.Marshal(listing.Tags)
	if err != nil {
		return false, fmt.Errorf("failed to marshal tags: %w", err)
	}
	imagesJSON, err := json.Marshal(listing.ImageURLs)
	if err != nil {
		return false, fmt.Errorf("failed to marshal images: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rentals (property_id, title, link, house_type, rooms, price_text,
			tags_json, images_json, metro_value_text, station_name, content_hash,
			first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			house_type = excluded.house_type,
			rooms = excluded.rooms,
			price_text = excluded.price_text,
			tags_json = excluded.tags_json,
			images_json = excluded.images_json,
			metro_value_text = excluded.metro_value_text,
			station_name = excluded.station_name,
			content_hash = excluded.content_hash,
			last_seen_at = excluded.last_seen_at`,
		listing.PropertyID, listing.Title, listing.Link, listing.HouseType, listing.Rooms,
		listing.PriceText, string(tagsJSON), string(imagesJSON),
		listing.MetroValueText, listing.StationName, hash, now, now); err != nil {
		return false, &models.StorageError{Op: "upsert rental", Err: err}
	}

	// Facets are rewritten wholesale whenever the content changed.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM metro_distances WHERE property_id = ?`, listing.PropertyID); err != nil {
		return false, &models.StorageError{Op: "clear rental facets", Err: err}
	}
	for _, d := range listing.MetroDistances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metro_distances (property_id, station_id, station_name, metro_value_text, distance_meters)
			VALUES (?, ?, ?, ?, ?)`,
			listing.PropertyID, d.StationID, d.StationName, d.MetroValueText, d.DistanceMeters); err != nil {
			return false, &models.StorageError{Op: "insert rental facet", Err: err}
		}
	}

	return true, nil
}

// GetQueryListings returns the rentals linked to a query, most recently seen
// first, with their distance facets attached.
func (s *ListingStorage) GetQueryListings(ctx context.Context, queryID string, limit int, since time.Time) ([]*models.Listing, error) {
	if limit <= 0 {
		limit = 100
	}

	args := []interface{}{queryID}
	sinceClause := ""
	if !since.IsZero() {
		sinceClause = " AND r.last_seen_at >= ?"
		args = append(args, since.Unix())
	}
	args = append(args, limit)

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT r.property_id, r.title, r.link, r.house_type, r.rooms, r.price_text,
			COALESCE(r.tags_json, '[]'), COALESCE(r.images_json, '[]'),
			COALESCE(r.metro_value_text, ''), COALESCE(r.station_name, ''),
			r.first_seen_at, r.last_seen_at
		FROM rentals r
		JOIN query_rentals qr ON qr.property_id = r.property_id
		WHERE qr.query_id = ?`+sinceClause+`
		ORDER BY r.last_seen_at DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "get query listings", Err: err}
	}
	defer rows.Close()

	var listings []*models.Listing
	byID := make(map[string]*models.Listing)
	for rows.Next() {
		var listing models.Listing
		var tagsJSON, imagesJSON string
		var firstSeen, lastSeen int64

		if err := rows.Scan(
			&listing.PropertyID, &listing.Title, &listing.Link, &listing.HouseType,
			&listing.Rooms, &listing.PriceText, &tagsJSON, &imagesJSON,
			&listing.MetroValueText, &listing.StationName, &firstSeen, &lastSeen,
		); err != nil {
			return nil, &models.StorageError{Op: "scan listing", Err: err}
		}
		if err := json.Unmarshal([]byte(tagsJSON), &listing.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		if err := json.Unmarshal([]byte(imagesJSON), &listing.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}
		listing.FirstSeenAt = time.Unix(firstSeen, 0)
		listing.LastSeenAt = time.Unix(lastSeen, 0)

		listings = append(listings, &listing)
		byID[listing.PropertyID] = &listing
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "get query listings", Err: err}
	}

	if err := s.attachFacets(ctx, queryID, byID); err != nil {
		return nil, err
	}
	return listings, nil
}

// attachFacets loads the distance facets for the selected rentals in one pass.
func (s *ListingStorage) attachFacets(ctx context.Context, queryID string, byID map[string]*models.Listing) error {
	if len(byID) == 0 {
		return nil
	}

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT md.property_id, COALESCE(md.station_id, ''), COALESCE(md.station_name, ''),
			COALESCE(md.metro_value_text, ''), md.distance_meters
		FROM metro_distances md
		JOIN query_rentals qr ON qr.property_id = md.property_id
		WHERE qr.query_id = ?
		ORDER BY md.id`, queryID)
	if err != nil {
		return &models.StorageError{Op: "get listing facets", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var propertyID string
		var facet models.MetroDistance
		var distance sql.NullFloat64

		if err := rows.Scan(&propertyID, &facet.StationID, &facet.StationName, &facet.MetroValueText, &distance); err != nil {
			return &models.StorageError{Op: "scan listing facet", Err: err}
		}
		if distance.Valid {
			facet.DistanceMeters = &distance.Float64
		}
		if listing, ok := byID[propertyID]; ok {
			listing.MetroDistances = append(listing.MetroDistances, &facet)
		}
	}
	return rows.Err()
}
