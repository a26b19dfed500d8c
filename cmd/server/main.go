package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"virtus/internal/config"
	"virtus/internal/db"
	"virtus/internal/handlers"
	"virtus/internal/logging"
	"virtus/internal/notify"
	"virtus/internal/ratelimit"
	"virtus/internal/services"
	"virtus/internal/store"
	"virtus/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	format := cfg.LogFormat
	if format == "" && cfg.IsProduction() {
		format = "json"
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: format, File: cfg.LogFile})

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	ledger := store.NewLedgerStore(database)
	transactions := store.NewTransactionStore(database)
	institutions := store.NewInstitutionStore(database)
	advantages := store.NewAdvantageStore(database)
	vouchers := store.NewVoucherStore(database)
	tokens := store.NewPaymentTokenStore(database)
	notifications := store.NewNotificationStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database, log)
	hub := websocket.NewHub()

	engine := services.NewEngine(txRunner, accounts, ledger, transactions, audit, notifications, hub, log)
	transfers := services.NewTransferService(engine, users, institutions)
	catalog := services.NewCatalogService(engine, users, advantages)
	redemptions := services.NewRedemptionService(engine, users, advantages, vouchers, cfg.AppBaseURL)
	payments := services.NewPaymentService(engine, users, tokens, cfg.AppBaseURL, cfg.PaymentLinkTTL)
	codes := services.NewCodeService(redemptions, payments)

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.RedisURL != "" {
		rdb, err := ratelimit.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect redis")
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, "virtus:lookup", cfg.LookupLimit, cfg.LookupWindow)
	} else {
		log.Warn("REDIS_URL not set, voucher lookups are not rate limited")
	}

	var mailer notify.Mailer
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		mailer = notify.NewLogMailer(log)
	}
	worker := notify.NewWorker(notifications, mailer, notify.WorkerConfig{
		PollInterval: cfg.NotifyPollInterval,
		BatchSize:    cfg.NotifyBatchSize,
		MaxAttempts:  cfg.NotifyMaxAttempts,
		Backoff:      cfg.NotifyBackoff,
	}, log)
	go worker.Run(ctx)
	go payments.RunSweeper(ctx, cfg.PaymentLinkSweepInterval)

	handler := handlers.New(txRunner, cfg, log, handlers.Stores{
		Users:        users,
		Accounts:     accounts,
		Institutions: institutions,
		Transactions: transactions,
		Admin:        admin,
		Audit:        audit,
	}, handlers.Services{
		Transfers:   transfers,
		Catalog:     catalog,
		Redemptions: redemptions,
		Payments:    payments,
		Codes:       codes,
	}, limiter, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("virtus API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}
}
