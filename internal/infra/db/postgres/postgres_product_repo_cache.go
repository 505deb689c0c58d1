package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/metrics"
	red "telegram-storefront/internal/infra/redis"
)

var _ repository.ProductRepository = (*productRepoCacheDecorator)(nil)

// productRepoCacheDecorator fronts catalog reads with Redis. Checkout looks the
// product up on every intent, while the catalog itself changes rarely.
type productRepoCacheDecorator struct {
	inner repository.ProductRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewProductRepoCacheDecorator(inner repository.ProductRepository, cache red.RedisClient, ttl time.Duration) repository.ProductRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &productRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }

func (d *productRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	key := productKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var p model.Product
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("product", "hit")
			return &p, nil
		}
	}

	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *productRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, productKey(p.ID))
	return nil
}
