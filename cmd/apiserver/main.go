// The apiserver binary serves the LeaseLens REST API: document intake,
// analysis orchestration, and statute-grounded chat.  With kafka disabled it
// also runs the pipeline in-process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leaselens/leaselens/internal/application/chat"
	"github.com/leaselens/leaselens/internal/application/pipeline"
	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/genai"
	"github.com/leaselens/leaselens/internal/infrastructure/kafka"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
	"github.com/leaselens/leaselens/internal/infrastructure/milvus"
	"github.com/leaselens/leaselens/internal/infrastructure/minio"
	"github.com/leaselens/leaselens/internal/infrastructure/postgres"
	"github.com/leaselens/leaselens/internal/infrastructure/redis"
	httpserver "github.com/leaselens/leaselens/internal/interfaces/http"
	"github.com/leaselens/leaselens/internal/interfaces/http/handlers"
	"github.com/leaselens/leaselens/internal/interfaces/http/middleware"
	"github.com/leaselens/leaselens/internal/intelligence/analyzer"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/internal/intelligence/redactor"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "config file path (default: LEASELENS_* environment)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "apiserver:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(log)
	log.Info("starting apiserver", logging.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	if err := postgres.RunMigrations(postgres.DSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
		return err
	}
	pool, err := postgres.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	docs := postgres.NewDocumentRepository(pool, log)
	reports := postgres.NewReportStore(pool, log)
	mappings := postgres.NewMappingStore(pool, log)

	redisClient, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	lock := redis.NewAnalysisLock(redisClient, cfg.Pipeline.LockTTL, log)

	objects, err := minio.NewObjectStore(ctx, cfg.MinIO, log)
	if err != nil {
		return err
	}

	llm := genai.NewClient(cfg.GenAI, log)

	searcher, closeSearcher, err := buildSearcher(ctx, cfg, llm, log)
	if err != nil {
		return err
	}
	defer closeSearcher()
	if cfg.Search.CacheTTL > 0 {
		searcher = redis.NewCachedSearcher(searcher, redisClient, cfg.Search.CacheTTL, log)
	}

	keys, err := redactor.OpenKeyStore(cfg.Redaction.KeyStorePath)
	if err != nil {
		return err
	}
	defer keys.Close()

	ch, err := chunker.New(cfg.Chunker.MaxTokens, log)
	if err != nil {
		return err
	}
	an := analyzer.New(llm, log)

	var dispatcher pipeline.Dispatcher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, "apiserver", log)
		defer producer.Close()
		dispatcher = pipeline.NewKafkaDispatcher(producer)
	} else {
		orch := pipeline.NewOrchestrator(docs, reports, objects, an, an, ch, searcher,
			lock, nil, m, log, pipeline.OrchestratorOptions{
				SkipMetadataExtraction: cfg.Pipeline.SkipMetadataExtraction,
				TopK:                   cfg.Search.TopK,
				ChunkConcurrency:       cfg.Worker.ChunkConcurrency,
			})
		dispatcher = pipeline.NewInProcessDispatcher(orch, log)
	}

	svc := pipeline.NewService(docs, reports, objects, mappings,
		redactor.New(redactor.NewLexiconRecognizer(), log), redactor.NewVault(keys),
		dispatcher, m, log, pipeline.ServiceOptions{MaxUploadBytes: cfg.Upload.MaxSizeBytes})
	chatSvc := chat.NewService(docs, reports, searcher, llm, log, cfg.Search.TopK)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(svc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
		HealthHandler: handlers.NewHealthHandler(version,
			handlers.HealthCheckFunc{ComponentName: "postgres", Fn: pool.Ping},
			handlers.HealthCheckFunc{ComponentName: "redis", Fn: redisClient.HealthCheck},
		),
		CORS:      middleware.DefaultCORSConfig(),
		Logging:   middleware.DefaultLoggingConfig(),
		RateLimit: middleware.DefaultRateLimitConfig(),
		Mode:      cfg.Server.Mode,
		Logger:    log,
		Metrics:   m,
	})

	srv := httpserver.NewServer(cfg.Server, router, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return srv.Stop(context.Background())
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	lc := logging.LogConfig{Level: cfg.Level, Format: cfg.Format}
	if cfg.Output != "" {
		lc.OutputPaths = []string{cfg.Output}
	}
	return logging.NewLogger(lc)
}

// buildSearcher opens the configured statute retrieval backend.  The memory
// backend loads the corpus file into process and optionally hot-reloads it.
func buildSearcher(ctx context.Context, cfg *config.Config, embedder statute.Embedder, log logging.Logger) (statute.Searcher, func(), error) {
	if cfg.Search.Backend == "milvus" {
		s, err := milvus.Connect(ctx, cfg.Milvus.Addr, cfg.Milvus.Collection, embedder, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}

	index := statute.NewMemoryIndex(embedder, log)
	if err := index.LoadFile(cfg.Search.CorpusPath); err != nil {
		return nil, nil, err
	}
	if cfg.Search.HotReload {
		go func() {
			if err := index.Watch(ctx, cfg.Search.CorpusPath); err != nil {
				log.Warn("corpus hot reload stopped", logging.Err(err))
			}
		}()
	}
	return index, func() {}, nil
}
