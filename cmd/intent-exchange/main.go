package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"intent-exchange-service/internal/adapters/broadcaster"
	"intent-exchange-service/internal/adapters/db"
	"intent-exchange-service/internal/adapters/httpapi"
	"intent-exchange-service/internal/adapters/quality"
	"intent-exchange-service/internal/adapters/quota"
	"intent-exchange-service/internal/adapters/redis"
	"intent-exchange-service/internal/adapters/scheduler"
	"intent-exchange-service/internal/adapters/ws"
	"intent-exchange-service/internal/app"
	"intent-exchange-service/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Intent Exchange Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories
	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	transactionRepo := repoFactory.GetTransactionRepository()
	autoBidRepo := repoFactory.GetAutoBidRepository()

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create Redis broadcaster
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	log.Info().Msg("Redis broadcaster initialized")

	// Quality scorer client and submission quota
	scorerClient := quality.NewClient(quality.ClientParams{
		Config: cfg.Scorer,
		Logger: log.Logger,
	})
	submissionQuota := quota.NewRedisQuota(quota.RedisQuotaParams{
		RedisClient: redisClient,
		DailyLimit:  cfg.Quota.DailySubmissionLimit,
		Logger:      log.Logger,
	})

	// Create business services
	autoBidService := app.NewAutoBidService(app.AutoBidServiceParams{
		Repo:   autoBidRepo,
		Logger: log.Logger,
	})

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		AutoBidRepo: autoBidRepo,
		Solicitor:   autoBidService,
		Scorer:      scorerClient,
		Broadcaster: redisBroadcaster,
		Config:      cfg.Auction,
		Logger:      log.Logger,
	})

	// Create settlement deadline scheduler before the settlement service;
	// they reference each other.
	settlementScheduler := scheduler.NewSettlementScheduler(scheduler.SettlementSchedulerParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	settlementService := app.NewSettlementService(app.SettlementServiceParams{
		TransactionRepo: transactionRepo,
		AuctionRepo:     auctionRepo,
		Quota:           submissionQuota,
		Broadcaster:     redisBroadcaster,
		Deadlines:       settlementScheduler,
		Config:          cfg.Settlement,
		Logger:          log.Logger,
	})
	settlementScheduler.SetSettlementService(settlementService)

	log.Info().Msg("Business services initialized")

	// Create auction scheduler
	auctionScheduler := scheduler.NewAuctionScheduler(scheduler.AuctionSchedulerParams{
		RedisClient:    redisClient,
		AuctionService: auctionService,
		Logger:         log.Logger,
	})

	// Start schedulers
	auctionScheduler.Start()
	settlementScheduler.Start()
	log.Info().Msg("Schedulers started")

	// Update auction service with scheduler
	auctionService.SetScheduler(auctionScheduler)

	// HTTP API server
	apiHandler := httpapi.NewHandler(httpapi.HandlerParams{
		AuctionService:    auctionService,
		SettlementService: settlementService,
		AutoBidService:    autoBidService,
		Logger:            log.Logger,
	})
	apiServer := httpapi.NewServer(httpapi.ServerParams{
		Config:  cfg,
		Handler: apiHandler,
		Logger:  log.Logger,
	})

	// WebSocket live feed server
	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		Broadcaster:    redisBroadcaster,
		Logger:         log.Logger,
	})

	log.Info().Msg("Servers initialized")

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start HTTP API server")
			cancel()
		}
	}()

	go func() {
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop schedulers
	auctionScheduler.Stop()
	settlementScheduler.Stop()
	log.Info().Msg("Schedulers stopped")

	// Stop servers
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP API server")
	}
	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	// Drain the auto-bid worker pool
	autoBidService.Stop()

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		// JSON format (default)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global logger
	zerolog.DefaultContextLogger = &log.Logger
}
