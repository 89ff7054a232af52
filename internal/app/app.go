package app

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/handlers"
	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/services/canonical"
	"github.com/ternarybob/rentwatch/internal/services/crawler"
	"github.com/ternarybob/rentwatch/internal/services/notify"
	"github.com/ternarybob/rentwatch/internal/services/policy"
	"github.com/ternarybob/rentwatch/internal/services/scheduler"
	"github.com/ternarybob/rentwatch/internal/storage/sqlite"
)

// App holds the wired application: configuration, storage, services and the
// HTTP handlers the server mounts.
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Storage interfaces.StorageManager

	CrawlService interfaces.CrawlService
	Scheduler    *scheduler.Service

	APIHandler   *handlers.APIHandler
	CrawlHandler *handlers.CrawlHandler
	QueryHandler *handlers.QueryHandler
}

// New wires the full application from configuration.
func New(config *common.Config) (*App, error) {
	logger := common.GetLogger()

	storage, err := sqlite.NewManager(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, err
	}

	canonicalizer := canonical.NewService(logger)
	fetcher := crawler.NewFetcher(config.Crawler, logger)
	parser := crawler.NewParser(config.Crawler.BaseURL, config.Crawler.MaxImagesPerItem, logger)
	coordinator := crawler.NewCoordinator(fetcher, parser, config.Crawler, logger)
	policyEngine := policy.NewEngine(config.Crawler.WalkingSpeed, logger)

	var dispatcher interfaces.Dispatcher
	if config.Notify.Enabled && config.Notify.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(config.Notify, logger)
	} else {
		logger.Warn().Msg("Webhook notifications disabled")
	}

	crawlService := crawler.NewService(
		canonicalizer, coordinator, policyEngine, dispatcher, storage, config.Crawler, logger)

	a := &App{
		Config:       config,
		Logger:       logger,
		Storage:      storage,
		CrawlService: crawlService,
		APIHandler:   handlers.NewAPIHandler(logger),
		CrawlHandler: handlers.NewCrawlHandler(crawlService, logger),
		QueryHandler: handlers.NewQueryHandler(canonicalizer, storage, logger),
	}

	if config.Scheduler.Enabled {
		a.Scheduler = scheduler.NewService(crawlService, storage, config, logger)
	}

	return a, nil
}

// StartScheduler starts the watch scheduler when it is enabled.
func (a *App) StartScheduler() error {
	if a.Scheduler == nil {
		return nil
	}
	return a.Scheduler.Start()
}

// Close releases the application resources.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
