package models

import "time"

// QueryParams is the canonical parameter set extracted from a listings search
// URL. Two URLs with the same canonical params produce the same QueryID.
type QueryParams struct {
	Region    string   `json:"region"`
	Kind      string   `json:"kind,omitempty"`
	Stations  []string `json:"stations,omitempty"` // sorted ascending, deduplicated
	MetroLine string   `json:"metroLine,omitempty"`
	PriceMin  string   `json:"priceMin,omitempty"`
	PriceMax  string   `json:"priceMax,omitempty"`
	Sections  []string `json:"sections,omitempty"`
	Rooms     []string `json:"rooms,omitempty"`
	Floor     string   `json:"floor,omitempty"`
}

// MultiStation reports whether the query fans out into per-station sub-crawls.
func (p *QueryParams) MultiStation() bool {
	return len(p.Stations) > 1
}

// StationCount returns the number of sub-crawl stations. An empty station
// list still counts as a single crawl.
func (p *QueryParams) StationCount() int {
	if len(p.Stations) == 0 {
		return 1
	}
	return len(p.Stations)
}

// CanonicalQuery is the result of URL canonicalization.
type CanonicalQuery struct {
	QueryID        string      `json:"queryId"`
	Description    string      `json:"description"`
	CanonicalURL   string      `json:"normalizedUrl"`
	EquivalentURLs []string    `json:"equivalentUrls"`
	Params         QueryParams `json:"searchCriteria"`
}

// Query is the durable identity of a search. Created on first crawl,
// last_seen_at refreshed on every subsequent crawl, removed only by the
// explicit clear operation.
type Query struct {
	ID           string      `json:"id"`
	Description  string      `json:"description"`
	Params       QueryParams `json:"searchCriteria"`
	WatchEnabled bool        `json:"watchEnabled"`
	WatchOptions string      `json:"-"` // JSON snapshot of CrawlOptions for scheduled re-crawls
	FirstSeenAt  time.Time   `json:"firstSeenAt"`
	LastSeenAt   time.Time   `json:"lastSeenAt"`
}

// QuerySummary is the list-endpoint projection of a query with counters.
type QuerySummary struct {
	Query
	RentalCount  int       `json:"rentalCount"`
	SessionCount int       `json:"sessionCount"`
	LastCrawlAt  time.Time `json:"lastCrawlAt,omitempty"`
}

// SimilarQuery is a query scored against a reference query by shared region,
// station overlap and price-range overlap.
type SimilarQuery struct {
	Query
	Score int `json:"score"` // 0-100
}

// ClearResult reports the row counts removed by a cascading clear.
type ClearResult struct {
	Sessions       int `json:"sessionsDeleted"`
	SessionLinks   int `json:"sessionLinksDeleted"`
	QueryLinks     int `json:"queryLinksDeleted"`
	Rentals        int `json:"rentalsDeleted"`
	MetroDistances int `json:"metroDistancesDeleted"`
}
