package crawler

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
	"github.com/ternarybob/rentwatch/internal/services/policy"
)

// Service is the crawl orchestrator: canonicalize, record the query, open a
// session, fan out the fetches, merge, decide notifications, persist, dispatch
// and close the session.
type Service struct {
	canonicalizer interfaces.Canonicalizer
	coordinator   *Coordinator
	policy        *policy.Engine
	dispatcher    interfaces.Dispatcher
	storage       interfaces.StorageManager
	config        common.CrawlerConfig
	logger        arbor.ILogger
}

// NewService wires the orchestrator. dispatcher may be nil when notifications
// are disabled in configuration.
func NewService(
	canonicalizer interfaces.Canonicalizer,
	coordinator *Coordinator,
	policyEngine *policy.Engine,
	dispatcher interfaces.Dispatcher,
	storage interfaces.StorageManager,
	config common.CrawlerConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		canonicalizer: canonicalizer,
		coordinator:   coordinator,
		policy:        policyEngine,
		dispatcher:    dispatcher,
		storage:       storage,
		config:        config,
		logger:        logger,
	}
}

// Crawl runs one full orchestration for a search URL. A session that fails
// after opening is left without a finished timestamp; statistics count it as
// interrupted.
func (s *Service) Crawl(ctx context.Context, rawURL string, opts *models.CrawlOptions) (*models.CrawlResult, error) {
	canonical, err := s.canonicalizer.Canonicalize(rawURL)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = models.NewDefaultCrawlOptions()
	}
	opts.Normalize()

	result, err := s.run(ctx, canonical, opts)
	if err != nil {
		// The query is known at this point, so a failure can be reported to
		// the notification channel. Best effort only.
		s.notifyError(ctx, canonical.Description, opts, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) run(ctx context.Context, canonical *models.CanonicalQuery, opts *models.CrawlOptions) (*models.CrawlResult, error) {
	logger := s.logger.WithCorrelationId(canonical.QueryID)
	logger.Info().
		Str("description", canonical.Description).
		Int("stations", canonical.Params.StationCount()).
		Msg("Starting crawl")

	if _, err := s.storage.QueryStorage().UpsertQuery(ctx, canonical); err != nil {
		return nil, err
	}

	optionsJSON, err := opts.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize crawl options: %w", err)
	}
	sessionID, err := s.storage.SessionStorage().OpenSession(ctx, canonical.QueryID, optionsJSON)
	if err != nil {
		return nil, err
	}

	existing, err := s.storage.ListingStorage().GetExistingPropertyIDs(ctx, canonical.QueryID)
	if err != nil {
		return nil, err
	}

	stationResults := s.coordinator.Crawl(ctx, s.config.BaseURL, canonical.Params, opts.MultiStation)

	var listings []*models.Listing
	var crawlErrors []string
	if opts.MultiStation.MergeResults || !canonical.Params.MultiStation() {
		listings, crawlErrors = MergeResults(stationResults)
	} else {
		listings, crawlErrors = FlattenResults(stationResults)
	}

	// Every station failing is a crawl failure, not an empty observation.
	if len(listings) == 0 && len(crawlErrors) == len(stationResults) && len(stationResults) > 0 {
		return nil, stationResults[0].Err
	}

	candidates := s.selectCandidates(listings, existing, opts.MaxLatest)

	rentals := make([]*models.CrawlRental, 0, len(listings))
	var toNotify []interfaces.NotifyItem
	for _, listing := range listings {
		meta := s.policy.Evaluate(opts, listing)
		if !candidates[listing.PropertyID] {
			// Known listings keep the distance overlay but never re-notify.
			meta.WillNotify = false
			meta.IsSilent = false
		} else if meta.WillNotify {
			toNotify = append(toNotify, interfaces.NotifyItem{Listing: listing, Silent: meta.IsSilent})
		}
		rentals = append(rentals, &models.CrawlRental{Listing: *listing, Notification: meta})
	}

	if err := s.storage.ListingStorage().PersistListings(ctx, sessionID, canonical.QueryID, listings, candidates); err != nil {
		return nil, err
	}

	willSend := opts.NotifyMode != models.NotifyModeNone && len(toNotify) > 0 && s.dispatcher != nil
	if willSend {
		if err := s.dispatcher.SendListings(ctx, canonical.Description, toNotify); err != nil {
			// Dispatch problems are logged by the dispatcher; the crawl result
			// still reports the intent to notify.
			logger.Warn().Err(err).Msg("Notification dispatch reported an error")
		}
	}

	summary := models.CrawlSummary{
		TotalRentals:      len(listings),
		NewRentals:        len(toNotify),
		NotificationsSent: willSend,
		NotifyMode:        opts.NotifyMode,
		FilteredMode:      opts.FilteredMode,
		MultiStation:      canonical.Params.MultiStation(),
		StationCount:      canonical.Params.StationCount(),
		Stations:          canonical.Params.Stations,
		CrawlErrors:       crawlErrors,
	}

	if err := s.storage.SessionStorage().CloseSession(ctx, sessionID, &models.SessionSummary{
		StationCount:      summary.StationCount,
		MultiStation:      summary.MultiStation,
		TotalListings:     summary.TotalRentals,
		NewListings:       summary.NewRentals,
		NotificationsSent: summary.NotificationsSent,
		ErrorCount:        len(crawlErrors),
	}); err != nil {
		return nil, err
	}

	logger.Info().
		Int("total", summary.TotalRentals).
		Int("new", summary.NewRentals).
		Int("errors", len(crawlErrors)).
		Msg("Crawl complete")

	return &models.CrawlResult{Rentals: rentals, Summary: summary}, nil
}

// selectCandidates derives the notification candidate set. With maxLatest set
// the first maxLatest observations are candidates whether or not they are
// already known; otherwise only never-seen listings qualify.
func (s *Service) selectCandidates(listings []*models.Listing, existing map[string]bool, maxLatest int) map[string]bool {
	candidates := make(map[string]bool)
	if maxLatest > 0 {
		if len(listings) > maxLatest {
			listings = listings[:maxLatest]
		}
		for _, listing := range listings {
			candidates[listing.PropertyID] = true
		}
		return candidates
	}
	for _, listing := range listings {
		if !existing[listing.PropertyID] {
			candidates[listing.PropertyID] = true
		}
	}
	return candidates
}

func (s *Service) notifyError(ctx context.Context, description string, opts *models.CrawlOptions, crawlErr error) {
	if s.dispatcher == nil || opts.NotifyMode == models.NotifyModeNone {
		return
	}
	if err := s.dispatcher.SendError(ctx, description, crawlErr); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send error notification")
	}
}
