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

	"github.com/go-redis/redis/v8"

	"github.com/josh-kwaku/potfund-ledger/internal/config"
	"github.com/josh-kwaku/potfund-ledger/internal/fingerprint"
	"github.com/josh-kwaku/potfund-ledger/internal/handler"
	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/ledger"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/middleware"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
	"github.com/josh-kwaku/potfund-ledger/internal/rotation"
	"github.com/josh-kwaku/potfund-ledger/internal/txn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("potfund-ledger", cfg.LogLevel, cfg.AppEnv)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(startCtx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancelStart()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional: without it the idempotency store reads Postgres
	// directly and duplicate detection is off.
	var (
		redisClient *redis.Client
		cache       idempotency.Cache
		cachePinger *idempotency.RedisCache
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		cachePinger = idempotency.NewRedisCache(redisClient)
		cache = cachePinger
	} else {
		slog.Warn("REDIS_URL not set; idempotency cache and duplicate detection disabled")
	}

	funds := repository.NewFundRepository(db)
	members := repository.NewMemberBalanceRepository(db)
	entries := repository.NewLedgerRepository(db)
	audit := repository.NewAuditRepository(db)
	idemRecords := repository.NewIdempotencyRepository(db)

	runner := txn.NewRunner(db, txn.Config{
		MaxAttempts: cfg.LedgerMaxAttempts,
		BaseDelay:   cfg.RetryBase(),
		MaxDelay:    cfg.RetryMax(),
	})

	scheduler := rotation.NewScheduler(
		repository.NewCycleRepository(db),
		repository.NewRosterRepository(db),
		repository.NewSwapRepository(db),
		funds,
		members,
		audit,
		runner,
		db,
		cfg.RosterTrustThreshold,
	)

	var detector *fingerprint.Detector
	if redisClient != nil {
		detector = fingerprint.NewDetector(redisClient, cfg.DuplicateWindow)
	} else {
		detector = fingerprint.NewDetector(nil, 0)
	}

	manager := ledger.NewManager(
		funds,
		members,
		entries,
		audit,
		scheduler,
		idempotency.NewStore(idemRecords, cache, cfg.IdempotencyTTL),
		detector,
		runner,
		db,
	)

	format := money.NewFormat(cfg.CurrencyMinorDigits)
	ledgerHandler := handler.NewLedgerHandler(manager, format)
	rotationHandler := handler.NewRotationHandler(scheduler, format)

	var healthHandler *handler.HealthHandler
	if cachePinger != nil {
		healthHandler = handler.NewHealthHandler(db, cachePinger)
	} else {
		healthHandler = handler.NewHealthHandler(db, nil)
	}

	requireAuth := middleware.Auth(cfg.JWTSecret)
	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/v1/groups/{groupID}/fund", authed(ledgerHandler.OpenFund))
	mux.Handle("PATCH /api/v1/groups/{groupID}/fund", authed(ledgerHandler.SetFundStatus))
	mux.Handle("POST /api/v1/groups/{groupID}/members", authed(ledgerHandler.EnrollMember))
	mux.Handle("PATCH /api/v1/groups/{groupID}/members/{memberID}", authed(ledgerHandler.SetMemberStatus))
	mux.Handle("POST /api/v1/groups/{groupID}/contributions", authed(ledgerHandler.RecordContribution))
	mux.Handle("GET /api/v1/groups/{groupID}/balance", authed(ledgerHandler.GetBalance))
	mux.Handle("GET /api/v1/groups/{groupID}/members/{memberID}/balance", authed(ledgerHandler.GetMemberBalance))
	mux.Handle("GET /api/v1/groups/{groupID}/entries", authed(ledgerHandler.ListEntries))
	mux.Handle("POST /api/v1/entries/{entryID}/reversal", authed(ledgerHandler.ReverseEntry))
	mux.Handle("POST /api/v1/cycles/{cycleID}/payouts", authed(ledgerHandler.RecordPayout))

	mux.Handle("POST /api/v1/groups/{groupID}/cycles", authed(rotationHandler.CreateCycle))
	mux.Handle("POST /api/v1/cycles/{cycleID}/activate", authed(rotationHandler.ActivateCycle))
	mux.Handle("POST /api/v1/cycles/{cycleID}/advance", authed(rotationHandler.Advance))
	mux.Handle("GET /api/v1/cycles/{cycleID}/roster", authed(rotationHandler.GetRoster))
	mux.Handle("POST /api/v1/cycles/{cycleID}/swaps", authed(rotationHandler.RequestSwap))
	mux.Handle("POST /api/v1/swaps/{requestID}/response", authed(rotationHandler.RespondToSwap))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	purger := idempotency.NewPurger(idemRecords, logger, cfg.IdempotencyPurgeInterval)
	go purger.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Tracing(middleware.Logging(middleware.Recovery(mux))),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
