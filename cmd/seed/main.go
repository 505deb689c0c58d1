package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"telegram-storefront/internal/config"
	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
	pg "telegram-storefront/internal/infra/db/postgres"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/usecase"
)

// Sample catalog for local checkout runs against the in-memory processor.
var sampleProducts = []model.Product{
	{ID: 1, Name: "Netflix Premium", Price: "1 - 150, 3 - 400, 12 - 1500", PaymentType: "one_time", Category: "streaming"},
	{ID: 2, Name: "Spotify Family", Price: "100", PaymentType: "subscription", Category: "music"},
	{ID: 3, Name: "YouTube Premium", Price: "1 - 120, 6 - 650", PaymentType: "one_time", Category: "streaming"},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	products := pg.NewPostgresProductRepo(pool)
	settings := pg.NewPostgresSettingsRepo(pool)

	for i := range sampleProducts {
		p := sampleProducts[i]
		existing, err := products.FindByID(ctx, repository.NoTX, p.ID)
		if err == nil {
			logger.Info().Int64("id", existing.ID).Str("name", existing.Name).Msg("product already present")
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Fatal().Err(err).Int64("id", p.ID).Msg("lookup product")
		}
		if err := products.Save(ctx, repository.NoTX, &p); err != nil {
			logger.Fatal().Err(err).Str("name", p.Name).Msg("seed product")
		}
		logger.Info().Int64("id", p.ID).Str("name", p.Name).Str("price", p.Price).Msg("product seeded")
	}

	if _, err := settings.Get(ctx, repository.NoTX, usecase.SettingReferralPercent); errors.Is(err, domain.ErrNotFound) {
		pct := model.DefaultReferralPercent.String()
		if err := settings.Set(ctx, repository.NoTX, usecase.SettingReferralPercent, pct); err != nil {
			logger.Fatal().Err(err).Msg("seed referral percent")
		}
		logger.Info().Str("percent", pct).Msg("referral percent seeded")
	}
}
