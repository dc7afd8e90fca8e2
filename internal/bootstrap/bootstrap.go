package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirillkom/parts-sales-assistant/internal/config"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
	"github.com/kirillkom/parts-sales-assistant/internal/core/usecase"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/catalog"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/notify"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/rerank/lexical"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/vector/chromem"
	memoryindex "github.com/kirillkom/parts-sales-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/parts-sales-assistant/internal/observability/metrics"
)

// App is the wired dialogue service.
type App struct {
	Config config.Config

	Retriever ports.CatalogRetriever
	Dialogue  ports.DialogueService
	Metrics   *metrics.HTTPServerMetrics
	Executor  *resilience.Executor

	indexer *usecase.Retriever
	source  *catalog.FileSource
	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Metrics:  metrics.NewHTTPServerMetrics("api"),
		Executor: resilience.NewExecutor(cfg.Resilience),
		source:   catalog.NewFileSource(cfg.CatalogPath),
	}

	embedder, err := newEmbedder(cfg, app.Executor)
	if err != nil {
		return nil, err
	}
	index, err := newVectorIndex(cfg)
	if err != nil {
		return nil, err
	}
	app.indexer = usecase.NewRetriever(embedder, index, lexical.New(), cfg.EmbedBatchSize)
	app.Retriever = usecase.NewInstrumentedRetriever(app.indexer, app.Metrics)

	if err := app.ReloadCatalog(ctx); err != nil {
		return nil, fmt.Errorf("build catalog index: %w", err)
	}

	store, err := app.conversationStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	sink, err := app.notificationSink()
	if err != nil {
		app.Close()
		return nil, err
	}

	engine := usecase.NewEngine(app.Retriever, usecase.EngineConfig{
		SearchTopK:  cfg.RAGSearchTopK,
		RerankTopK:  cfg.RAGRerankTopK,
		MaxDistance: cfg.RAGMaxDistance,
	})
	app.Dialogue = usecase.NewConversationUseCase(engine, store, sink, app.Metrics)
	return app, nil
}

// ReloadCatalog loads the catalog file and rebuilds the vector index from it.
func (a *App) ReloadCatalog(ctx context.Context) error {
	chunks, err := a.source.Load(ctx)
	if err == nil {
		err = a.indexer.BuildIndex(ctx, chunks)
	}
	a.Metrics.RecordCatalogReload(err)
	if err != nil {
		return err
	}
	slog.Info("catalog_indexed", "path", a.source.Path(), "chunks", len(chunks))
	return nil
}

// WatchCatalog rebuilds the index whenever the catalog file changes. It
// blocks until ctx is done; it returns immediately when watching is disabled.
func (a *App) WatchCatalog(ctx context.Context) error {
	if !a.Config.CatalogWatch {
		return nil
	}
	return catalog.NewWatcher(a.source.Path(), 0, a.ReloadCatalog).Run(ctx)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) conversationStore(ctx context.Context) (ports.ConversationStore, error) {
	if a.Config.PostgresDSN == "" {
		slog.Warn("conversation_store_in_memory", "reason", "POSTGRES_DSN is empty")
		return memory.NewConversationStore(), nil
	}
	db, err := openPostgres(ctx, a.Config.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	return postgres.NewConversationRepository(db), nil
}

func (a *App) notificationSink() (ports.NotificationSink, error) {
	switch a.Config.NotifySink {
	case "", "log":
		return notify.NewLogSink(slog.Default()), nil
	case "nats":
		queue, err := newQueue(a.Config, a.Executor)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, queue.Close)
		return notify.NewQueueSink(queue), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_SINK %q", a.Config.NotifySink)
	}
}

// Worker is the wired notification worker.
type Worker struct {
	Config config.Config

	Queue         ports.NotificationQueue
	Notifications ports.NotificationProcessor
	Metrics       *metrics.WorkerMetrics

	closers []func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	w := &Worker{
		Config:  cfg,
		Metrics: metrics.NewWorkerMetrics("worker"),
	}
	executor := resilience.NewExecutor(cfg.Resilience)

	queue, err := newQueue(cfg, executor)
	if err != nil {
		return nil, err
	}
	w.Queue = queue
	w.closers = append(w.closers, queue.Close)

	var store ports.NotificationStore
	if cfg.PostgresDSN == "" {
		slog.Warn("notification_store_in_memory", "reason", "POSTGRES_DSN is empty")
		store = memory.NewNotificationStore()
	} else {
		db, err := openPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.closers = append(w.closers, func() { _ = db.Close() })
		store = postgres.NewNotificationRepository(db)
	}

	archive, err := localfs.New(cfg.InvoiceStoragePath)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("init invoice storage: %w", err)
	}

	w.Notifications = usecase.NewNotificationUseCase(notify.NewLogSink(slog.Default()), store, archive)
	return w, nil
}

func (w *Worker) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
	w.closers = nil
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch cfg.Embedder {
	case "", "hashing":
		return hashing.New(cfg.EmbeddingDimension), nil
	case "ollama":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
			Timeout:            cfg.OllamaTimeout,
			ResilienceExecutor: executor,
		})
		return ollama.NewEmbedder(client), nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDER %q", cfg.Embedder)
	}
}

func newVectorIndex(cfg config.Config) (ports.VectorIndex, error) {
	switch cfg.VectorIndex {
	case "", "memory":
		return memoryindex.New(), nil
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	case "chromem":
		if cfg.ChromemPath == "" {
			return chromem.New(cfg.ChromemCollection), nil
		}
		if err := os.MkdirAll(cfg.ChromemPath, 0o755); err != nil {
			return nil, fmt.Errorf("create chromem dir: %w", err)
		}
		index, err := chromem.NewPersistent(cfg.ChromemPath, cfg.ChromemCollection)
		if err != nil {
			return nil, fmt.Errorf("open chromem index: %w", err)
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_INDEX %q", cfg.VectorIndex)
	}
}

func newQueue(cfg config.Config, executor *resilience.Executor) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		return nil, fmt.Errorf("init notification queue: %w", err)
	}
	return queue, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
