package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
	"github.com/ternarybob/rentwatch/internal/services/canonical"
)

// StationResult is the outcome of one station's fetch within a fan-out.
// Results are returned in station-id order regardless of completion order.
type StationResult struct {
	StationID string
	URL       string
	Listings  []*models.Listing
	Err       error
}

// Coordinator fans a multi-station query out into one fetch per station,
// bounded by a concurrency limit and paced by a shared rate limiter so the
// fan-out never bursts against the site.
type Coordinator struct {
	fetcher interfaces.Fetcher
	parser  interfaces.Parser
	config  common.CrawlerConfig
	logger  arbor.ILogger
}

// NewCoordinator creates a fan-out coordinator.
func NewCoordinator(fetcher interfaces.Fetcher, parser interfaces.Parser, config common.CrawlerConfig, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		fetcher: fetcher,
		parser:  parser,
		config:  config,
		logger:  logger,
	}
}

// Crawl fetches every station of the query. A query without a station
// parameter runs as a single job against the canonical URL with an empty
// station id. One station failing never aborts the others.
func (c *Coordinator) Crawl(ctx context.Context, origin string, params models.QueryParams, opts models.MultiStationOptions) []*StationResult {
	stations := params.Stations
	if len(stations) == 0 {
		stations = []string{""}
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = c.config.MaxConcurrent
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	delay := c.config.RequestDelay
	if opts.DelayBetweenRequests > 0 {
		delay = time.Duration(opts.DelayBetweenRequests) * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	if delay <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	results := make([]*StationResult, len(stations))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, stationID := range stations {
		wg.Add(1)
		go func(i int, stationID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = c.crawlStation(ctx, origin, params, stationID, opts.IncludeStationInfo, limiter)
		}(i, stationID)
	}
	wg.Wait()

	return results
}

// crawlStation fetches and parses one station page, stamping the station
// facet onto every listing.
func (c *Coordinator) crawlStation(ctx context.Context, origin string, params models.QueryParams, stationID string, includeStationInfo bool, limiter *rate.Limiter) *StationResult {
	url := stationURL(origin, params, stationID)
	result := &StationResult{StationID: stationID, URL: url}

	if err := limiter.Wait(ctx); err != nil {
		result.Err = err
		return result
	}

	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.logger.Warn().Str("station_id", stationID).Err(err).Msg("Station crawl failed")
		result.Err = err
		return result
	}

	result.Listings = c.parser.ParseListings(body)
	for _, listing := range result.Listings {
		stampStationFacet(listing, stationID, includeStationInfo)
	}

	c.logger.Debug().
		Str("station_id", stationID).
		Int("listings", len(result.Listings)).
		Msg("Station crawl complete")

	return result
}

// stationURL narrows the query to a single station. An empty station id keeps
// the full canonical URL.
func stationURL(origin string, params models.QueryParams, stationID string) string {
	if stationID == "" {
		return canonical.BuildURL(origin, params)
	}
	narrowed := params
	narrowed.Stations = []string{stationID}
	return canonical.BuildURL(origin, narrowed)
}

// stampStationFacet records which station a listing was observed under. The
// parsed station name wins; the static mapping fills the gap when requested.
func stampStationFacet(listing *models.Listing, stationID string, includeStationInfo bool) {
	name := listing.StationName
	if name == "" && includeStationInfo && stationID != "" {
		name = canonical.StationName(stationID)
		listing.StationName = name
	}
	if stationID == "" && name == "" && listing.MetroValueText == "" {
		return
	}
	listing.AddMetroDistance(&models.MetroDistance{
		StationID:      stationID,
		StationName:    name,
		MetroValueText: listing.MetroValueText,
	})
}
