package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/evora/mediagen-back/internal/backend"
	"github.com/evora/mediagen-back/internal/config"
	httpserver "github.com/evora/mediagen-back/internal/http"
	"github.com/evora/mediagen-back/internal/http/handlers"
	"github.com/evora/mediagen-back/internal/logging"
	"github.com/evora/mediagen-back/internal/orchestrator"
	"github.com/evora/mediagen-back/internal/queue"
	"github.com/evora/mediagen-back/internal/registry"
	"github.com/evora/mediagen-back/internal/repository"
	"github.com/evora/mediagen-back/internal/results"
	"github.com/evora/mediagen-back/internal/service"
	"github.com/evora/mediagen-back/internal/session"
	"github.com/evora/mediagen-back/internal/storage"
	"github.com/evora/mediagen-back/internal/worker"
)

func main() {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		panic(err)
	}
	cfg := config.Load()
	logger := logging.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	models, err := registry.BuiltIn()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid model registry")
	}

	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	client := backend.NewHTTPClient(backend.HTTPClientConfig{
		APIKey:  cfg.BackendAPIKey,
		BaseURL: cfg.BackendBaseURL,
		Timeout: time.Duration(cfg.BackendTimeoutMS) * time.Millisecond,
	}, models)
	if !client.Available() {
		logger.Warn().Msg("GEN_BACKEND_API_KEY not configured, submissions will fail")
	}

	orch := orchestrator.New(client, orchestrator.Config{
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		JobTimeout:   time.Duration(cfg.JobTimeoutSeconds) * time.Second,
	}, logger)

	resultStore := results.NewStore(client, blobs, repo, logger)
	generations := service.NewGenerationsService(models, orch, producer, repo, blobs)
	api := handlers.NewAPI(generations)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		Sessions:       setupSessions(cfg, logger),
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		processor := worker.NewProcessor(consumer, orch, resultStore, cfg.WorkerConcurrency, logger)
		go processor.Start(ctx)
		logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker pool started")
	} else {
		logger.Info().Msg("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupSessions(cfg config.Config, logger zerolog.Logger) session.Provider {
	provider := session.NewStaticProvider(cfg.SessionTokens)
	if provider.Size() == 0 {
		if cfg.AppEnv == "development" {
			logger.Warn().Msg("SESSION_TOKENS not configured, using development identity")
			return session.NewStaticProvider([]string{"dev:dev@localhost"})
		}
		logger.Warn().Msg("SESSION_TOKENS not configured, all requests will be rejected")
	}
	return provider
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (repository.MediaRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryMediaRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresMediaRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize postgres repository, fallback to memory")
		return repository.NewMemoryMediaRepository(), func() {}
	}
	logger.Info().Msg("postgres repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(cfg.QueueBuffer, cfg.QueueMaxAttempts, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: cfg.QueueMaxAttempts,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize redis streams queue, fallback to local")
		local := queue.NewLocalQueue(cfg.QueueBuffer, cfg.QueueMaxAttempts, logger)
		return local, local, func() {}
	}

	logger.Info().Msg("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}
