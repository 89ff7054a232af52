package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/rentwatch/internal/models"
)

// QueryListOptions filters the paginated query listing.
type QueryListOptions struct {
	Region     string
	SinceDate  time.Time
	HasRentals bool
	Limit      int
	Offset     int
}

// QueryStorage - durable search identities and their lifecycle
type QueryStorage interface {
	// UpsertQuery creates the query on first sight and refreshes last_seen_at
	// on every subsequent crawl. Idempotent.
	UpsertQuery(ctx context.Context, canonical *models.CanonicalQuery) (*models.Query, error)
	GetQuery(ctx context.Context, id string) (*models.Query, error)
	ListQueries(ctx context.Context, opts *QueryListOptions) ([]*models.QuerySummary, int, error)
	// FindSimilar scores queries sharing the region and at least one station
	// or an overlapping price range, 0-100.
	FindSimilar(ctx context.Context, id string, limit int) ([]*models.SimilarQuery, error)
	SetWatch(ctx context.Context, id string, enabled bool, optionsJSON string) error
	ListWatched(ctx context.Context) ([]*models.Query, error)
	// ClearQuery cascades: session links, sessions, query links, facets of
	// rentals no longer referenced by any query, then the orphaned rentals.
	ClearQuery(ctx context.Context, id string) (*models.ClearResult, error)
}

// SessionStorage - crawl session lifecycle
type SessionStorage interface {
	OpenSession(ctx context.Context, queryID, optionsJSON string) (string, error)
	CloseSession(ctx context.Context, sessionID string, summary *models.SessionSummary) error
	ListSessions(ctx context.Context, queryID string, limit int) ([]*models.CrawlSession, error)
}

// ListingStorage - observed rentals and their query/session links
type ListingStorage interface {
	// GetExistingPropertyIDs returns every property id ever linked to the
	// query, used to derive the new-listing set.
	GetExistingPropertyIDs(ctx context.Context, queryID string) (map[string]bool, error)
	// PersistListings upserts the observed listings inside one transaction.
	// A listing whose content hash is unchanged gets only a last_seen_at
	// refresh; otherwise scalars are replaced and the distance facets are
	// rewritten. newIDs marks which listings this session introduced.
	PersistListings(ctx context.Context, sessionID, queryID string, listings []*models.Listing, newIDs map[string]bool) error
	GetQueryListings(ctx context.Context, queryID string, limit int, since time.Time) ([]*models.Listing, error)
}

// StatsStorage - read-side aggregates for the REST facade
type StatsStorage interface {
	Statistics(ctx context.Context) (*models.Statistics, error)
}

// StorageManager aggregates the storage capability set. The relational SQLite
// backend is the only implementation.
type StorageManager interface {
	QueryStorage() QueryStorage
	SessionStorage() SessionStorage
	ListingStorage() ListingStorage
	StatsStorage() StatsStorage
	Close() error
}
