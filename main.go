package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/krishaworker/config"
	"sjsage522/krishaworker/helpers"
	"sjsage522/krishaworker/internal"
	"sjsage522/krishaworker/internal/crawler"
	"sjsage522/krishaworker/logger"
	"sjsage522/krishaworker/services/cache"
	"sjsage522/krishaworker/services/metrics"
	"sjsage522/krishaworker/services/publisher"
	"sjsage522/krishaworker/services/store"
	"sjsage522/krishaworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	search, err := cfg.CrawlConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid search configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("search_url", crawler.NewQueryBuilder(cfg.BaseURL).Build(search)).
		Dur("polite_delay", cfg.PoliteDelay).
		Int("detail_concurrency", cfg.DetailConcurrency).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	}()

	// Initialize services
	deps, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Close()

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr)
		metricsServer.Start()
	}

	fetcher := crawler.NewResilientFetcher(helpers.NewClient(cfg.RequestTimeout), cfg.BackoffSchedule)
	orchestrator := crawler.NewOrchestrator(crawler.Options{
		Fetcher:           fetcher,
		Store:             deps.Store,
		Cache:             deps.Cache,
		SeenTTL:           cfg.SeenTTL,
		Publisher:         deps.Publisher,
		Drops:             deps.Drops,
		Queries:           crawler.NewQueryBuilder(cfg.BaseURL),
		PoliteDelay:       cfg.PoliteDelay,
		DetailConcurrency: cfg.DetailConcurrency,
	})

	w := worker.NewWorker(orchestrator, deps.Store, deps.Publisher, search)
	_, runErr := w.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		shutdownCancel()
	}

	if runErr != nil {
		deps.Close()
		log.Fatal().Err(runErr).Msg("Crawl failed")
	}
	log.Info().Msg("Shutting down gracefully...")
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*internal.Dependencies, error) {
	deps := &internal.Dependencies{
		Drops: helpers.NewDropLogger(cfg.DropLogFile),
	}

	// Initialize store
	if cfg.DatabaseURL == "" {
		deps.Store = store.NewMemoryStore(nil)
		logger.Warn("DATABASE_URL is not set, listings are kept in memory only")
	} else {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		deps.Store = pgStore
		logger.Info("Connected to PostgreSQL (max conns: %d)", cfg.DBMaxConns)
	}

	// Initialize seen cache
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr, 0)
		if err := cacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s is not reachable, every detail page will be fetched: %v", cfg.MemcacheAddr, err)
		} else {
			deps.Cache = cacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			deps.Close()
			return nil, err
		}
		deps.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return deps, nil
}
