package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basegraph.app/insight/common/id"
	corellm "basegraph.app/insight/common/llm"
	"basegraph.app/insight/common/logger"
	"basegraph.app/insight/common/otel"
	"basegraph.app/insight/core/config"
	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/extract"
	"basegraph.app/insight/internal/llm"
	"basegraph.app/insight/internal/progress"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
	"basegraph.app/insight/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(2)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// slog is not configured yet, write straight to stderr
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "insight worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.Group,
		"consumer_name", cfg.Queue.Consumer,
		"worker_count", cfg.Processing.WorkerCount)

	if err := id.Init(id.WorkerNode); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.Stream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		Consumer:     cfg.Queue.Consumer,
		DLQStream:    cfg.Queue.DLQStream,
		BatchSize:    1,
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	llmClient, err := corellm.New(corellm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Pool())

	gateway, err := llm.NewGateway(llmClient, llm.Config{
		CallTimeout: time.Duration(cfg.LLM.CallTimeoutSeconds) * time.Second,
		MaxTokens:   cfg.LLM.MaxTokens,
		Mock: llm.MockConfig{
			Enabled:     cfg.Mock.Enabled,
			FailureType: cfg.Mock.FailureType,
			Probability: cfg.Mock.Probability,
			Seed:        cfg.Mock.Seed,
		},
		Production:  cfg.IsProduction(),
		FallbackTTL: time.Duration(cfg.Queue.FallbackTTL) * time.Hour,
	}, redisClient, stores.Metrics(), nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm gateway", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	if cfg.LLM.SmokeCheck {
		smokeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		err := gateway.SmokeCheck(smokeCtx)
		cancel()
		if err != nil {
			slog.ErrorContext(ctx, "llm smoke check failed", "error", err, "model", cfg.LLM.Model)
			os.Exit(3)
		}
		slog.InfoContext(ctx, "llm smoke check passed", "model", gateway.Model())
	}

	blobs, err := store.NewLocalBlobStore(cfg.Blob.Dir, cfg.Blob.MaxSizeBytes)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open blob store", "error", err)
		os.Exit(1)
	}

	stepTimeout := time.Duration(cfg.Processing.StepTimeoutSeconds) * time.Second
	registry := views.NewRegistry(gateway, stepTimeout)
	classifier := views.NewClassifier(gateway, cfg.Processing.EnableThreshold, cfg.Processing.ConfidentThreshold)

	producer := queue.NewRedisProducer(redisClient, cfg.Queue.Stream, nil)
	publisher := progress.NewPublisher(redisClient, time.Duration(cfg.Queue.ProgressTTL)*time.Hour, nil)

	engine := views.NewEngine(views.EngineConfig{
		Stores:          stores,
		Tx:              views.NewTxRunner(database),
		Registry:        registry,
		Classifier:      classifier,
		Extractor:       extract.NewRegistry(),
		Blobs:           blobs,
		Producer:        producer,
		Events:          publisher,
		MaxContentChars: cfg.Processing.MaxContentChars,
		MaxSegmentChars: cfg.Processing.MaxSegmentChars,
	})

	w := worker.New(consumer, engine, stores, publisher, worker.Config{
		Concurrency: cfg.Processing.WorkerCount,
		MaxAttempts: 3,
		JobTimeout:  time.Duration(cfg.Processing.JobTimeoutSeconds) * time.Second,
	}, nil)

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Queue.Stream,
		Group:     cfg.Queue.Group,
		Consumer:  cfg.Queue.Consumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	sweeper := worker.NewSweeper(stores.Metrics(), stores.Quality(), worker.SweeperConfig{
		RetentionDays: cfg.Processing.MetricRetentionDays,
	}, nil)

	errCh := make(chan error, 3)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()
	go func() {
		sweeper.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the periodic loops first (quick), then the worker, which may
	// be mid-job.
	reclaimer.Stop()
	sweeper.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██╗███╗   ██╗███████╗██╗ ██████╗ ██╗  ██╗████████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██║████╗  ██║██╔════╝██║██╔════╝ ██║  ██║╚══██╔══╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║██╔██╗ ██║███████╗██║██║  ███╗███████║   ██║       ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║██║╚██╗██║╚════██║██║██║   ██║██╔══██║   ██║       ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║██║ ╚████║███████║██║╚██████╔╝██║  ██║   ██║       ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝╚═╝  ╚═══╝╚══════╝╚═╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝        ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
