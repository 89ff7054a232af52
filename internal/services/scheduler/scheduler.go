package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
	"github.com/ternarybob/rentwatch/internal/services/canonical"
)

// Service re-crawls watched queries on a cron schedule. Each tick runs the
// watched queries sequentially with the option snapshot stored on the query,
// so a scheduled crawl behaves exactly like the API call that enabled the
// watch.
type Service struct {
	crawlService interfaces.CrawlService
	storage      interfaces.StorageManager
	config       *common.Config
	cron         *cron.Cron
	logger       arbor.ILogger

	mu           sync.Mutex
	tickInFlight bool // guards against overlapping passes
	started      bool // Start/Stop latch, same goroutine only
}

// NewService creates the watch scheduler.
func NewService(crawlService interfaces.CrawlService, storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		crawlService: crawlService,
		storage:      storage,
		config:       config,
		cron:         cron.New(cron.WithSeconds()),
		logger:       logger,
	}
}

// Start registers the tick and starts the cron loop.
func (s *Service) Start() error {
	if s.started {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Scheduler.Schedule
	if err := common.ValidateSchedule(schedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("failed to register watch tick: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.logger.Info().Str("schedule", schedule).Msg("Watch scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight tick to finish.
func (s *Service) Stop() {
	if !s.started {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false
	s.logger.Info().Msg("Watch scheduler stopped")
}

// tick runs one pass over the watched queries. A pass that is still running
// when the next tick fires is not doubled up.
func (s *Service) tick() {
	s.mu.Lock()
	if s.tickInFlight {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous watch pass still running, skipping tick")
		return
	}
	s.tickInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.tickInFlight = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	watched, err := s.storage.QueryStorage().ListWatched(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list watched queries")
		return
	}
	if len(watched) == 0 {
		return
	}

	s.logger.Info().Int("queries", len(watched)).Msg("Running watch pass")

	for _, query := range watched {
		s.crawlWatched(ctx, query)
	}
}

func (s *Service) crawlWatched(ctx context.Context, query *models.Query) {
	opts := models.NewDefaultCrawlOptions()
	if query.WatchOptions != "" {
		restored, err := models.CrawlOptionsFromJSON(query.WatchOptions)
		if err != nil {
			s.logger.Warn().
				Str("query_id", query.ID).
				Err(err).
				Msg("Stored watch options unreadable, using defaults")
		} else {
			opts = restored
		}
	}

	url := canonical.BuildURL(s.config.Crawler.BaseURL, query.Params)
	result, err := s.crawlService.Crawl(ctx, url, opts)
	if err != nil {
		s.logger.Warn().Str("query_id", query.ID).Err(err).Msg("Scheduled crawl failed")
		return
	}

	s.logger.Info().
		Str("query_id", query.ID).
		Int("total", result.Summary.TotalRentals).
		Int("new", result.Summary.NewRentals).
		Msg("Scheduled crawl complete")
}
