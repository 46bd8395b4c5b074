// Package bootstrap wires configuration into the ingestion and answering graph shared by api, worker and ragctl.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mewerton/universal-system/internal/config"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/core/usecase"
	"github.com/mewerton/universal-system/internal/infrastructure/chunking"
	"github.com/mewerton/universal-system/internal/infrastructure/export/xlsx"
	"github.com/mewerton/universal-system/internal/infrastructure/extractor/pdftext"
	"github.com/mewerton/universal-system/internal/infrastructure/extractor/plaintext"
	"github.com/mewerton/universal-system/internal/infrastructure/llm/anthropic"
	"github.com/mewerton/universal-system/internal/infrastructure/llm/gemini"
	"github.com/mewerton/universal-system/internal/infrastructure/llm/ollama"
	"github.com/mewerton/universal-system/internal/infrastructure/queue/inproc"
	"github.com/mewerton/universal-system/internal/infrastructure/queue/nats"
	"github.com/mewerton/universal-system/internal/infrastructure/repository/memory"
	"github.com/mewerton/universal-system/internal/infrastructure/repository/postgres"
	"github.com/mewerton/universal-system/internal/infrastructure/resilience"
	"github.com/mewerton/universal-system/internal/infrastructure/storage/localfs"
	"github.com/mewerton/universal-system/internal/infrastructure/storage/s3archive"
	"github.com/mewerton/universal-system/internal/infrastructure/tokens"
	"github.com/mewerton/universal-system/internal/infrastructure/vector/flatindex"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo   ports.DocumentRepository
	Queue  ports.MessageQueue
	Events ports.IndexEvents

	Catalog      *usecase.NamespaceCatalog
	Orchestrator *usecase.Orchestrator
	UploadUC     *usecase.UploadDocumentUseCase
	ExportUC     *usecase.ExportTablesUseCase
	Answerers    *usecase.AnswererFactory
	Sessions     *usecase.SessionRegistry

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	namespaces, err := config.LoadNamespaces(cfg.NamespacesFile)
	if err != nil {
		return nil, fmt.Errorf("load namespaces: %w", err)
	}

	repo, err := app.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	app.Repo = repo

	storage, err := localfs.New(cfg.DocumentsPath)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}

	var archive ports.DocumentArchive
	if cfg.S3Enabled() {
		a, err := s3archive.New(ctx, s3archive.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 archive: %w", err)
		}
		archive = a
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
		Operations:          resilience.GenerationPolicy(cfg.GenerateRetryMaxAttempts),
		Logger:              logger,
	})
	if err := app.openBroker(executor); err != nil {
		return nil, err
	}

	providers, err := app.openProviders(ctx, executor)
	if err != nil {
		return nil, err
	}

	store, err := flatindex.NewStore(cfg.IndexesPath, providers.embedder, flatindex.Options{
		BatchSize: cfg.EmbedBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init index store: %w", err)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}

	app.Catalog = usecase.NewNamespaceCatalog(namespaces, store)
	app.Answerers = usecase.NewAnswererFactory(store, providers.embedder, providers.chat, tokens.NewCounter(cfg.TokenEncoding, logger), usecase.AnswerOptions{
		FetchK:      cfg.RAGFetchK,
		TopK:        cfg.RAGTopK,
		Lambda:      cfg.RAGLambda,
		TokenLimit:  cfg.RAGTokenLimit,
		Temperature: cfg.RAGTemperature,
		MaxTokens:   cfg.RAGMaxOutputTokens,
	}, logger)
	app.Orchestrator = usecase.NewOrchestrator(repo, storage, app.Catalog, extractor, store, app.Answerers, app.Events, logger)
	app.UploadUC = usecase.NewUploadDocumentUseCase(repo, storage, archive, app.Queue, app.Catalog, app.Orchestrator, logger)
	app.ExportUC = usecase.NewExportTablesUseCase(app.Catalog, store, xlsx.NewWriter())
	app.Sessions = usecase.NewSessionRegistry(app.Answerers, cfg.SessionIdleTTL)

	logger.Info("bootstrap_completed",
		"namespaces", len(namespaces),
		"extractor", cfg.Extractor,
		"embed_provider", cfg.EmbedProvider,
		"chat_provider", cfg.ChatProvider,
		"async_ingest", app.Queue != nil,
		"s3_archive", archive != nil,
	)
	return app, nil
}

// WatchIndexEvents drops cached answerers when any process reports a namespace update.
// It blocks until ctx is done.
func (a *App) WatchIndexEvents(ctx context.Context) error {
	return a.Events.SubscribeIndexUpdated(ctx, func(_ context.Context, namespace string) {
		a.Sessions.InvalidateNamespace(namespace)
		a.Logger.Info("namespace_bindings_invalidated", "namespace", namespace)
	})
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// openRepository uses Postgres when a DSN is set and process memory otherwise.
func (a *App) openRepository(ctx context.Context) (ports.DocumentRepository, error) {
	if a.Config.PostgresDSN == "" {
		a.Logger.Warn("document_repository_in_memory", "reason", "POSTGRES_DSN not set")
		return memory.NewDocumentRepository(), nil
	}
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.onClose(func() { closeDB(db) })

	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func closeDB(db *sql.DB) {
	_ = db.Close()
}

// openBroker connects NATS when configured. Without it index events stay in process.
func (a *App) openBroker(executor *resilience.Executor) error {
	if a.Config.NATSURL == "" {
		a.Events = inproc.NewEvents()
		return nil
	}
	queue, err := nats.New(a.Config.NATSURL, nats.Options{
		IngestSubject:      a.Config.NATSIngestSubject,
		IndexedSubject:     a.Config.NATSIndexedSubject,
		ResilienceExecutor: executor,
		Logger:             a.Logger,
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.onClose(queue.Close)
	a.Queue = queue
	a.Events = queue
	return nil
}

type providerSet struct {
	embedder ports.Embedder
	chat     ports.ChatModel
}

func (a *App) openProviders(ctx context.Context, executor *resilience.Executor) (providerSet, error) {
	cfg := a.Config
	var set providerSet

	var ollamaClient *ollama.Client
	ollamaFor := func() *ollama.Client {
		if ollamaClient == nil {
			ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		}
		return ollamaClient
	}
	var geminiClient *gemini.Client
	geminiFor := func() (*gemini.Client, error) {
		if geminiClient != nil {
			return geminiClient, nil
		}
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			ChatModel:  cfg.GeminiChatModel,
			EmbedModel: cfg.GeminiEmbedModel,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		a.onClose(func() { _ = c.Close() })
		geminiClient = c
		return c, nil
	}

	switch cfg.EmbedProvider {
	case "ollama":
		set.embedder = ollama.NewEmbedder(ollamaFor())
	case "gemini":
		c, err := geminiFor()
		if err != nil {
			return set, err
		}
		set.embedder = c
	default:
		return set, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}

	switch cfg.ChatProvider {
	case "anthropic":
		c, err := anthropic.New(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicURL,
			Model:   cfg.AnthropicModel,
		}, executor)
		if err != nil {
			return set, fmt.Errorf("init anthropic: %w", err)
		}
		set.chat = c
	case "ollama":
		set.chat = ollama.NewGenerator(ollamaFor())
	case "gemini":
		c, err := geminiFor()
		if err != nil {
			return set, err
		}
		set.chat = c
	default:
		return set, fmt.Errorf("unknown CHAT_PROVIDER %q", cfg.ChatProvider)
	}
	return set, nil
}

func newExtractor(cfg config.Config) (ports.ContentExtractor, error) {
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	switch cfg.Extractor {
	case "pdf", "":
		return pdftext.NewExtractor(chunker), nil
	case "docconv":
		return plaintext.NewExtractor(chunker), nil
	default:
		return nil, fmt.Errorf("unknown EXTRACTOR %q", cfg.Extractor)
	}
}
