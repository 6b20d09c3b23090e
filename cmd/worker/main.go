// The worker binary consumes analysis tasks from kafka and runs the document
// pipeline: metadata extraction, chunked statute-grounded analysis, and
// report consolidation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

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
	"github.com/leaselens/leaselens/internal/intelligence/analyzer"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/pkg/errors"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "config file path (default: LEASELENS_* environment)")
	metricsAddr := flag.String("metrics-addr", ":9091", "address for the /metrics and /healthz listener")
	flag.Parse()

	if err := run(*configPath, *metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeValidation, "the worker requires kafka.enabled: true; single-binary deployments run the pipeline inside the apiserver")
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(log)
	log.Info("starting worker", logging.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	pool, err := postgres.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	docs := postgres.NewDocumentRepository(pool, log)
	reports := postgres.NewReportStore(pool, log)

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

	ch, err := chunker.New(cfg.Chunker.MaxTokens, log)
	if err != nil {
		return err
	}
	an := analyzer.New(llm, log)

	producer := kafka.NewProducer(cfg.Kafka, "worker", log)
	defer producer.Close()

	orch := pipeline.NewOrchestrator(docs, reports, objects, an, an, ch, searcher,
		lock, producer, m, log, pipeline.OrchestratorOptions{
			SkipMetadataExtraction: cfg.Pipeline.SkipMetadataExtraction,
			TopK:                   cfg.Search.TopK,
			ChunkConcurrency:       cfg.Worker.ChunkConcurrency,
		})
	worker := pipeline.NewWorker(orch, m, log, pipeline.WorkerOptions{
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryBackoff: cfg.Worker.RetryBackoff,
	})

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)

	consumers := make([]*kafka.Consumer, concurrency)
	for i := range consumers {
		consumers[i] = kafka.NewConsumer(cfg.Kafka, kafka.TopicDocumentAnalyze, log)
		c := consumers[i]
		g.Go(func() error { return c.Run(gctx, worker.Handle) })
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, c := range consumers {
			c.Close()
		}
		return nil
	})

	g.Go(func() error { return serveMetrics(gctx, metricsAddr, m, log) })

	log.Info("worker consuming",
		logging.String("topic", kafka.TopicDocumentAnalyze),
		logging.Int("consumers", concurrency))
	return g.Wait()
}

// serveMetrics exposes /metrics and a liveness probe for the worker process.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", logging.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
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
