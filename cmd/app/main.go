// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-storefront/internal/config"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/domain/ports/repository"
	payAdapters "telegram-storefront/internal/infra/adapters/payment"
	tele "telegram-storefront/internal/infra/adapters/telegram"
	"telegram-storefront/internal/infra/api"
	pg "telegram-storefront/internal/infra/db/postgres"
	"telegram-storefront/internal/infra/events"
	"telegram-storefront/internal/infra/i18n"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
	red "telegram-storefront/internal/infra/redis"
	"telegram-storefront/internal/infra/sched"
	"telegram-storefront/internal/infra/security"
	"telegram-storefront/internal/infra/worker"
	"telegram-storefront/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("storefront stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting storefront")

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		redisClient *red.Client
		locker      red.Locker
		limiter     api.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; running without lock, limiter and cache")
		} else {
			defer redisClient.Close()
			locker = red.NewLocker(redisClient)
			limiter = red.NewRateLimiter(redisClient)
		}
	}

	// ---- Card token encryption (optional) ----
	var sealer pg.Sealer
	if cfg.Security.EncryptionKey != "" {
		cs, err := security.NewCardSealer(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("card sealer: %w", err)
		}
		sealer = cs
	} else {
		logger.Warn().Msg("security.encryption_key not set; card tokens are stored unencrypted")
	}

	// ---- Repositories ----
	payments := pg.NewPaymentRepo(pool)
	tokenizations := pg.NewTokenizationRepo(pool)
	users := pg.NewPostgresUserRepo(pool)
	settings := pg.NewPostgresSettingsRepo(pool)
	oneTime := pg.NewOneTimeSubscriptionRepo(pool)
	recurring := pg.NewRecurringSubscriptionRepo(pool)
	cards := pg.NewCardTokenRepo(pool, sealer)
	credits := pg.NewReferralRepo(pool)
	var products repository.ProductRepository = pg.NewPostgresProductRepo(pool)
	if redisClient != nil {
		products = pg.NewProductRepoCacheDecorator(products, redisClient, cfg.Redis.ProductTTL)
	}

	// ---- Adapters ----
	processor, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	notifier := newNotifier(cfg, logger)
	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Notify.Locale)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// Side effects outlive request contexts; the pool drains on Stop.
	tasks := worker.NewPool(cfg.Notify.Workers, logger)
	tasks.Start(context.Background())
	defer tasks.Stop()

	// ---- Use cases ----
	notes := usecase.NewNotifications(notifier, tasks, tr, logger)
	paymentUC := usecase.NewPaymentUseCase(payments, tokenizations, users, products, processor, tm, cfg.Payment.RedirectURL(), logger)
	referralUC := usecase.NewReferralUseCase(users, settings, credits, tm, notes, logger)
	materializer := usecase.NewMaterializer(tokenizations, oneTime, recurring, cards, processor, tm, logger)
	webhookUC := usecase.NewWebhookUseCase(payments, users, products, materializer, referralUC, notes, publisher, locker, cfg.Redis.WebhookLockTTL, tasks, logger)
	reconcileUC := usecase.NewReconcileUseCase(payments, tokenizations, products, processor, webhookUC, materializer, cfg.Scheduler.StaleAfter, cfg.Scheduler.ExpireAfter, cfg.Scheduler.BatchSize, logger)
	cancellationUC := usecase.NewCancellationUseCase(oneTime, recurring, users, notes, logger)
	profileUC := usecase.NewProfileUseCase(users, oneTime, recurring, cards, referralUC)

	// ---- HTTP ----
	srv := api.NewServer(cfg.HTTP, api.Deps{
		Payments:     paymentUC,
		Webhooks:     webhookUC,
		Reconciler:   reconcileUC,
		Cancellation: cancellationUC,
		Profiles:     profileUC,
		Referrals:    referralUC,
		InitData:     security.NewInitDataVerifier(cfg.Bot.Token, cfg.Security.InitDataMaxAge),
		Admin:        security.NewAdminAuth(cfg.Admin),
		Limiter:      limiter,
		CreateLimit:  cfg.Redis.CreateLimit,
		CreateWindow: cfg.Redis.CreateWindow,
		Health:       pool.Ping,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(sched.NewPaymentReconciler(cfg.Scheduler.PollInterval, reconcileUC, logger).Run(gctx))
	})
	g.Go(func() error {
		reportPoolStats(gctx, pool)
		return nil
	})

	return g.Wait()
}

func newProcessor(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentProcessor, error) {
	if cfg.Payment.Monobank.Token == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("XTOKEN not set; using in-memory payment processor")
		return payAdapters.NewNoopPaymentProcessor(), nil
	}
	if cfg.Payment.Monobank.Token == "" {
		logger.Warn().Msg("XTOKEN not set; every processor call will fail")
	}
	gw, err := payAdapters.NewMonobankGateway(cfg.Payment.Monobank)
	if err != nil {
		return nil, fmt.Errorf("monobank: %w", err)
	}
	return gw, nil
}

func newNotifier(cfg *config.Config, logger *zerolog.Logger) adapter.Notifier {
	if cfg.Bot.Token == "" {
		logger.Warn().Msg("BOT_TOKEN not set; chat notifications disabled")
		return tele.NewNoopNotifier(logger)
	}
	n, err := tele.NewBotNotifier(cfg.Bot, cfg.Notify.Timeout, "", logger)
	if err != nil {
		logger.Error().Err(err).Msg("telegram unavailable; chat notifications disabled")
		return tele.NewNoopNotifier(logger)
	}
	return n
}

func newPublisher(cfg *config.Config, logger *zerolog.Logger) adapter.EventPublisher {
	if cfg.AMQP.URL == "" {
		return events.NewLogPublisher(logger)
	}
	p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable; payment events are only logged")
		return events.NewLogPublisher(logger)
	}
	return p
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
