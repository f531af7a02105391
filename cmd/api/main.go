package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giftshift/giftshift-backend/internal/api"
	"github.com/giftshift/giftshift-backend/internal/api/handlers"
	"github.com/giftshift/giftshift-backend/internal/auth"
	"github.com/giftshift/giftshift-backend/internal/config"
	"github.com/giftshift/giftshift-backend/internal/db"
	"github.com/giftshift/giftshift-backend/internal/exchange"
	"github.com/giftshift/giftshift-backend/internal/logger"
	"github.com/giftshift/giftshift-backend/internal/metrics"
	"github.com/giftshift/giftshift-backend/internal/middleware"
	"github.com/giftshift/giftshift-backend/internal/repository/postgres"
	"github.com/giftshift/giftshift-backend/internal/services"
	"github.com/giftshift/giftshift-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	ex := exchange.NewClient(cfg.ExchangeBaseURL, cfg.ExchangeAPIKey, cfg.ExchangeTimeout)
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)

	ledgerSvc := services.NewLedgerService(repos.Balances, repos.Ledger)
	settlementSvc := services.NewSettlementService(ex, repos.Deposits, repos.GiftCards, repos.Redemptions,
		repos.Transactions, repos.AuditLogs, ledgerSvc, wp)
	sweeper := services.NewSweeper(ex, repos.Deposits, repos.GiftCards, repos.Redemptions, settlementSvc)
	userSvc := services.NewUserService(repos.Users, cfg)
	depositSvc := services.NewDepositService(ex, repos.Deposits, repos.Transactions)
	giftCardSvc := services.NewGiftCardService(ex, repos.GiftCards, repos.Redemptions, repos.Transactions, ledgerSvc)

	r := api.NewRouter(api.Deps{
		Cfg:        cfg,
		Auth:       handlers.NewAuthHandler(tm, userSvc),
		AuthMW:     middleware.NewAuthMiddleware(tm),
		Settlement: handlers.NewSettlementHandler(cfg, sweeper, settlementSvc),
		Ledger:     ledgerSvc,
		Deposits:   depositSvc,
		GiftCards:  giftCardSvc,
		Txns:       services.NewTransactionQuery(repos.Transactions),
		Users:      userSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
