package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
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
	"basegraph.app/insight/internal/http/middleware"
	httprouter "basegraph.app/insight/internal/http/router"
	"basegraph.app/insight/internal/llm"
	"basegraph.app/insight/internal/progress"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/service"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
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

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "insight server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(id.ServerNode); err != nil {
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

	// The server runs LLM calls too: switching to a never-built view
	// regenerates it from stored intermediates.
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

	blobs, err := store.NewLocalBlobStore(cfg.Blob.Dir, cfg.Blob.MaxSizeBytes)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open blob store", "error", err)
		os.Exit(1)
	}

	stepTimeout := time.Duration(cfg.Processing.StepTimeoutSeconds) * time.Second
	registry := views.NewRegistry(gateway, stepTimeout)
	classifier := views.NewClassifier(gateway, cfg.Processing.EnableThreshold, cfg.Processing.ConfidentThreshold)

	producer := queue.NewRedisProducer(redisClient, cfg.Queue.Stream, nil)
	broker := progress.NewBroker(redisClient, nil)

	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		blobs,
		producer,
		registry,
		classifier,
		cfg.Processing,
		nil,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, broker)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, broker *progress.Broker) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, broker)

	return router
}

const banner = `
██╗███╗   ██╗███████╗██╗ ██████╗ ██╗  ██╗████████╗
██║████╗  ██║██╔════╝██║██╔════╝ ██║  ██║╚══██╔══╝
██║██╔██╗ ██║███████╗██║██║  ███╗███████║   ██║
██║██║╚██╗██║╚════██║██║██║   ██║██╔══██║   ██║
██║██║ ╚████║███████║██║╚██████╔╝██║  ██║   ██║
╚═╝╚═╝  ╚═══╝╚══════╝╚═╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝
`
