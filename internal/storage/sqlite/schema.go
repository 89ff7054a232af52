package sqlite

const schemaSQL = `
-- Durable search identities
-- Created on first crawl, last_seen_at refreshed on every crawl, removed
-- only by the explicit clear operation.
CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	region TEXT NOT NULL,
	kind TEXT,
	stations TEXT,
	metro_line TEXT,
	price_min TEXT,
	price_max TEXT,
	params_json TEXT NOT NULL,
	watch_enabled INTEGER DEFAULT 0,
	watch_options TEXT,
	first_seen_at INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queries_region ON queries(region, last_seen_at DESC);
CREATE INDEX IF NOT EXISTS idx_queries_watch ON queries(watch_enabled);

-- One row per crawl event. A session without finished_at was interrupted.
CREATE TABLE IF NOT EXISTS crawl_sessions (
	id TEXT PRIMARY KEY,
	query_id TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	station_count INTEGER DEFAULT 1,
	multi_station INTEGER DEFAULT 0,
	total_listings INTEGER DEFAULT 0,
	new_listings INTEGER DEFAULT 0,
	notifications_sent INTEGER DEFAULT 0,
	error_count INTEGER DEFAULT 0,
	options_json TEXT,
	FOREIGN KEY (query_id) REFERENCES queries(id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_query ON crawl_sessions(query_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON crawl_sessions(started_at DESC);

-- Observed rentals, shared across queries. content_hash detects meaningful
-- change; an unchanged listing only refreshes last_seen_at.
CREATE TABLE IF NOT EXISTS rentals (
	property_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	link TEXT,
	house_type TEXT,
	rooms TEXT,
	price_text TEXT,
	tags_json TEXT,
	images_json TEXT,
	metro_value_text TEXT,
	station_name TEXT,
	content_hash TEXT NOT NULL,
	first_seen_at INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rentals_last_seen ON rentals(last_seen_at DESC);

-- Per-rental, per-station distance facets, rewritten when the content hash
-- changes.
CREATE TABLE IF NOT EXISTS metro_distances (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	property_id TEXT NOT NULL,
	station_id TEXT,
	station_name TEXT,
	metro_value_text TEXT,
	distance_meters REAL,
	FOREIGN KEY (property_id) REFERENCES rentals(property_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_metro_property ON metro_distances(property_id);
CREATE INDEX IF NOT EXISTS idx_metro_station ON metro_distances(station_id);

-- Which queries have ever observed which rentals
CREATE TABLE IF NOT EXISTS query_rentals (
	query_id TEXT NOT NULL,
	property_id TEXT NOT NULL,
	first_linked_at INTEGER NOT NULL,
	PRIMARY KEY (query_id, property_id),
	FOREIGN KEY (query_id) REFERENCES queries(id),
	FOREIGN KEY (property_id) REFERENCES rentals(property_id)
);

CREATE INDEX IF NOT EXISTS idx_query_rentals_property ON query_rentals(property_id);

-- Which sessions observed which rentals, with the new-to-query flag
CREATE TABLE IF NOT EXISTS crawl_session_rentals (
	session_id TEXT NOT NULL,
	property_id TEXT NOT NULL,
	is_new INTEGER DEFAULT 0,
	PRIMARY KEY (session_id, property_id),
	FOREIGN KEY (session_id) REFERENCES crawl_sessions(id),
	FOREIGN KEY (property_id) REFERENCES rentals(property_id)
);

CREATE INDEX IF NOT EXISTS idx_session_rentals_property ON crawl_session_rentals(property_id);
`

// InitSchema initializes the database schema
func (s *SQLiteDB) InitSchema() error {
	_, err := s.db.Exec(schemaSQL)
	if err != nil {
		return err
	}
	s.logger.Info().Msg("Database schema initialized")
	return nil
}
