package app

import (
	"context"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/handlers"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/queue"
	"github.com/ternarybob/cognita/internal/services/chunker"
	"github.com/ternarybob/cognita/internal/services/embeddings"
	"github.com/ternarybob/cognita/internal/services/events"
	"github.com/ternarybob/cognita/internal/services/ingest"
	"github.com/ternarybob/cognita/internal/services/llm"
	"github.com/ternarybob/cognita/internal/services/loader"
	"github.com/ternarybob/cognita/internal/services/rag"
	"github.com/ternarybob/cognita/internal/services/vectorstore"
	"github.com/ternarybob/cognita/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Pipeline services
	EventService     interfaces.EventService
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	LoaderService    interfaces.DocumentLoader
	ChunkerService   interfaces.Chunker
	VectorService    interfaces.VectorService
	IngestService    *ingest.Service
	RAGService       interfaces.RAGService

	// Queue processing
	QueueManager *queue.Manager
	WorkerPool   *queue.WorkerPool
	Scheduler    *ingest.Scheduler

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	DocumentHandler   *handlers.DocumentHandler
	CollectionHandler *handlers.CollectionHandler
	QueryHandler      *handlers.QueryHandler
	WSHandler         *handlers.WebSocketHandler
}

// New creates the application, wiring storage, services, queue workers and
// handlers. Returned app is fully started.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)

	eventLogger := events.NewLoggerSubscriber(app.Logger)
	for _, eventType := range []interfaces.EventType{
		interfaces.EventDocumentQueued,
		interfaces.EventDocumentCompleted,
		interfaces.EventDocumentFailed,
		interfaces.EventCollectionPurged,
	} {
		if err := app.EventService.Subscribe(eventType, eventLogger); err != nil {
			return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
		}
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initQueue(); err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	app.initHandlers()

	if err := app.WorkerPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	if err := app.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start requeue scheduler: %w", err)
	}

	logger.Info().
		Str("llm_mode", string(app.LLMService.GetMode())).
		Int("workers", cfg.Queue.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the processing pipeline in dependency order.
func (a *App) initServices() error {
	a.LLMService = llm.NewService(a.Config, a.Logger)

	a.EmbeddingService = embeddings.NewService(
		a.LLMService,
		a.Config.Embedding.Model,
		a.Config.Embedding.Dimension,
		a.Logger,
	)

	a.LoaderService = loader.NewService(a.Logger)
	a.ChunkerService = chunker.NewService(a.Config.Ingest.ChunkSize, a.Config.Ingest.ChunkOverlap, a.Logger)

	a.VectorService = vectorstore.NewManager(
		a.StorageManager.VectorStorage(),
		a.EmbeddingService,
		a.Logger,
	)

	a.RAGService = rag.NewService(a.Config, a.VectorService, a.LLMService, a.Logger)

	return nil
}

// initQueue wires the persistent queue, the ingest service that feeds it and
// the worker pool that drains it.
func (a *App) initQueue() error {
	store, ok := a.StorageManager.DB().(*badgerhold.Store)
	if !ok {
		return fmt.Errorf("storage manager does not expose a badgerhold store")
	}

	queueCfg := queue.ConfigFromCommon(a.Config.Queue)

	queueManager, err := queue.NewManager(store.Badger(), queueCfg.QueueName, queueCfg.VisibilityTimeout, queueCfg.MaxReceive)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}
	a.QueueManager = queueManager

	a.IngestService = ingest.NewService(
		a.Config,
		a.StorageManager.DocumentStorage(),
		a.LoaderService,
		a.ChunkerService,
		a.VectorService,
		a.QueueManager,
		a.EventService,
		a.Logger,
	)

	a.WorkerPool = queue.NewWorkerPool(
		a.QueueManager,
		a.IngestService.ProcessMessage,
		queueCfg.Concurrency,
		queueCfg.PollInterval,
		a.Logger,
	)

	scheduler, err := ingest.NewScheduler(a.IngestService, a.Config.Ingest.Requeue, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create requeue scheduler: %w", err)
	}
	a.Scheduler = scheduler

	return nil
}

// initHandlers builds the HTTP and WebSocket handlers.
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.DocumentHandler = handlers.NewDocumentHandler(a.IngestService, a.StorageManager.DocumentStorage(), a.Config, a.Logger)
	a.CollectionHandler = handlers.NewCollectionHandler(a.IngestService, a.DocumentHandler, a.Logger)
	a.QueryHandler = handlers.NewQueryHandler(a.RAGService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.RAGService, a.EventService, a.Logger, &a.Config.WebSocket)
}

// Close shuts down the application in reverse dependency order.
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.WorkerPool != nil {
		if err := a.WorkerPool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop worker pool")
		} else {
			a.Logger.Info().Msg("Worker pool stopped")
		}
	}

	if a.QueueManager != nil {
		if err := a.QueueManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close queue manager")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		} else {
			a.Logger.Info().Msg("LLM service closed")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
