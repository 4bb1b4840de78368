// File: cmd/app/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chat-subscription-payments/internal/config"
	"chat-subscription-payments/internal/domain/ports/adapter"
	tele "chat-subscription-payments/internal/infra/adapters/telegram"
	"chat-subscription-payments/internal/infra/api"
	pg "chat-subscription-payments/internal/infra/db/postgres"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/infra/metrics"
	"chat-subscription-payments/internal/infra/payment"
	red "chat-subscription-payments/internal/infra/redis"
	"chat-subscription-payments/internal/infra/retry"
	"chat-subscription-payments/internal/infra/sched"
	"chat-subscription-payments/internal/infra/worker"
	"chat-subscription-payments/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		// logger is not configured yet
		l := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	policy := retry.Default()
	policy.MaxAttempts = cfg.Database.Retry.MaxAttempts
	policy.AttemptTimeout = cfg.Database.Retry.AttemptTimeout
	policy.BaseBackoff = cfg.Database.Retry.BaseBackoff
	policy.OnRetry = func(attempt int, err error) {
		metrics.IncStoreRetry()
		logger.Warn().Err(err).Int("attempt", attempt).Msg("store call failed; retrying")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool, policy)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)
	infoCache := red.NewSubscriptionInfoCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	intentRepo := pg.NewPaymentIntentRepo(pool, policy)
	subRepo := pg.NewSubscriptionRepo(pool, policy)
	unresolvedRepo := pg.NewUnresolvedPaymentRepo(pool, policy)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPostgresPlanRepo(pool, policy), redisClient, cfg.Redis.TTL, logger)

	// ---- Operator notifications ----
	notifyPool := worker.NewPool(cfg.Notify.Workers, cfg.Notify.Queue, logger)
	notifyPool.Start(ctx)
	defer notifyPool.Stop()

	var notifier adapter.OperatorNotifier
	if cfg.Notify.Telegram.Token != "" {
		tg, err := tele.NewOperatorNotifier(&cfg.Notify.Telegram, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
		notifier = tg
	} else {
		logger.Warn().Msg("notify.telegram.token not set; unresolved payments are only logged")
		notifier = tele.NewNoopNotifier(logger)
	}
	notifier = tele.NewAsyncNotifier(notifier, notifyPool, logger)

	// ---- Use cases ----
	matcher := usecase.NewMatcher(intentRepo, logger, nil)
	upgrader := usecase.NewSubscriptionUpgrader(subRepo, logger, nil)
	settlement := usecase.NewSettlement(tm, intentRepo, unresolvedRepo, planRepo, upgrader, infoCache, usecase.SettlementConfig{
		Currency:        cfg.Payment.Currency,
		DefaultPlanName: cfg.Payment.DefaultPlan,
	}, logger, nil)

	webhookUC := usecase.NewWebhookUseCase(payment.NewWebhookValidator(cfg.Payment.Webhook, logger), intentRepo, unresolvedRepo, matcher, settlement, notifier, logger, nil)
	webhookUC.SetDev(cfg.Runtime.Dev)
	resolutionUC := usecase.NewResolutionUseCase(unresolvedRepo, intentRepo, settlement, locker, logger)
	checkoutUC := usecase.NewCheckoutUseCase(intentRepo, planRepo, usecase.NewReferenceGenerator(nil), cfg.Payment.QRTemplate, logger, nil)
	subInfoUC := usecase.NewSubscriptionInfoUseCase(subRepo, planRepo, infoCache, logger)

	// ---- Backlog reporter ----
	reporter := sched.NewBacklogReporter(intentRepo, unresolvedRepo, pool, cfg.Scheduler.BacklogInterval, cfg.Scheduler.StaleAfter, logger)
	go reporter.Start(ctx)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	srv := api.NewServer(cfg, webhookUC, resolutionUC, checkoutUC, subInfoUC, auth, rateLimiter, intentRepo, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
