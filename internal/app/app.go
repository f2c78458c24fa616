package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/handlers"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/services/crawler"
	"github.com/ternarybob/nuntius/internal/services/dedup"
	"github.com/ternarybob/nuntius/internal/services/dispatcher"
	"github.com/ternarybob/nuntius/internal/services/extractor"
	"github.com/ternarybob/nuntius/internal/services/jobs"
	"github.com/ternarybob/nuntius/internal/services/linker"
	"github.com/ternarybob/nuntius/internal/services/scheduler"
	"github.com/ternarybob/nuntius/internal/storage/sqlite"
)

// App is the composition root: every component is constructed here at
// process start and passed down explicitly.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage   interfaces.StorageManager
	Deduper   *dedup.Service
	Extractor *extractor.Service

	JobManager *jobs.Manager
	Dispatcher *dispatcher.Dispatcher
	Scheduler  *scheduler.Service

	CategoryHandler *handlers.CategoryHandler
	JobHandler      *handlers.JobHandler
	ArticleHandler  *handlers.ArticleHandler
	StatusHandler   *handlers.StatusHandler
}

// New builds the application graph from configuration
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storage, err := sqlite.NewManager(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deduper, err := dedup.NewService(logger, &config.Storage.Badger)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to initialize fingerprint index: %w", err)
	}

	extractorService, err := extractor.NewService(logger, &config.Extractor)
	if err != nil {
		deduper.Close()
		storage.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	worker := crawler.NewWorker(storage, extractorService, deduper, linker.New(0), &config.Jobs, logger)
	jobDispatcher := dispatcher.New(storage, worker, &config.Jobs, &config.Dispatcher, logger)
	jobManager := jobs.NewManager(storage, jobDispatcher, &config.Jobs, logger)
	schedulerService := scheduler.NewService(storage, jobManager, &config.Scheduler, logger)

	return &App{
		Config:          config,
		Logger:          logger,
		Storage:         storage,
		Deduper:         deduper,
		Extractor:       extractorService,
		JobManager:      jobManager,
		Dispatcher:      jobDispatcher,
		Scheduler:       schedulerService,
		CategoryHandler: handlers.NewCategoryHandler(storage, config, logger),
		JobHandler:      handlers.NewJobHandler(jobManager, storage, logger),
		ArticleHandler:  handlers.NewArticleHandler(storage, logger),
		StatusHandler:   handlers.NewStatusHandler(storage, jobDispatcher, logger),
	}, nil
}

// Start launches the background services
func (a *App) Start() error {
	a.Dispatcher.Start()
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.Logger.Info().Msg("Application services started")
	return nil
}

// Close stops services and releases resources in reverse dependency order
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Dispatcher.Stop()
	a.Extractor.Close()

	if err := a.Deduper.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close fingerprint index")
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}
	a.Logger.Info().Msg("Application shut down")
}
