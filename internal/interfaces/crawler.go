package interfaces

import (
	"context"

	"github.com/ternarybob/rentwatch/internal/models"
)

// Fetcher retrieves a document body. Implementations retry with backoff and
// surface *models.FetchError when attempts are exhausted.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Parser extracts listing records from a document. A malformed document
// yields an empty slice, not an error.
type Parser interface {
	ParseListings(body string) []*models.Listing
}

// Canonicalizer derives the deterministic query identity from a search URL.
type Canonicalizer interface {
	Canonicalize(rawURL string) (*models.CanonicalQuery, error)
}

// NotifyItem is one ordered element of a webhook dispatch.
type NotifyItem struct {
	Listing *models.Listing
	Silent  bool
}

// Dispatcher sends chat-channel webhook payloads. Per-message failures are
// logged and never fail the orchestration.
type Dispatcher interface {
	// SendListings posts the items in order, one message each, honoring the
	// per-item silent flag.
	SendListings(ctx context.Context, queryDescription string, items []NotifyItem) error
	// SendError posts a best-effort error notification.
	SendError(ctx context.Context, queryDescription string, crawlErr error) error
}

// CrawlService is the top-level orchestrator contract consumed by the REST
// facade and the watch scheduler.
type CrawlService interface {
	Crawl(ctx context.Context, rawURL string, opts *models.CrawlOptions) (*models.CrawlResult, error)
}
