package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"book-rental-engine/config"
	httpHandler "book-rental-engine/internal/adapter/http/handler"
	pgStorage "book-rental-engine/internal/adapter/storage/postgres"
	redisStorage "book-rental-engine/internal/adapter/storage/redis"
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/internal/scheduler"
	"book-rental-engine/internal/service"
	"book-rental-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Book Rental Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	contractRepo := pgStorage.NewContractRepo(pool)
	hsRepo := pgStorage.NewHandshakeRepo(pool)
	rewardRepo := pgStorage.NewRewardRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis adapters
	runLock := redisStorage.NewRunLock(rdb)
	events := redisStorage.NewEventPublisher(rdb)

	// Initialize services
	tokenVerifier := service.NewJWTTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	hsMgr := service.NewHandshakeManager(hsRepo, cfg.Handshake.TTL, log)
	contractSvc := service.NewContractService(
		contractRepo,
		hsMgr,
		transactor,
		events,
		cfg.Billing.ChargePeriod,
		log,
	)
	billingSvc := service.NewBillingService(
		contractRepo,
		walletRepo,
		txRepo,
		transactor,
		events,
		runLock,
		cfg.Billing.ChargePeriod,
		cfg.Billing.RunLeaseTTL,
		log,
	)
	rewardSvc := service.NewRewardService(rewardRepo, walletRepo, txRepo, transactor, events, log)
	walletSvc := service.NewWalletService(walletRepo, txRepo, transactor, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ContractSvc:    contractSvc,
		BillingSvc:     billingSvc,
		RewardSvc:      rewardSvc,
		WalletSvc:      walletSvc,
		TokenVerifier:  tokenVerifier,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// Billing scheduler runs until shutdown
	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	sched := scheduler.NewBillingScheduler(billingSvc, cfg.Billing.RunInterval, log)
	go sched.Run(schedCtx)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopSched()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
