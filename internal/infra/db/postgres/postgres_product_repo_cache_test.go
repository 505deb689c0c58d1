//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/metrics"
	red "telegram-storefront/internal/infra/redis"
)

// cacheRequests reads cache_requests_total for one label pair from the default registry.
func cacheRequests(t *testing.T, cache, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "cache_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["cache"] == cache && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

type mockInnerProductRepo struct {
	products map[int64]*model.Product
	finds    int
}

func (m *mockInnerProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockInnerProductRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	m.finds++
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// mockRedisClient keeps values in a map. Get on a missing key fails like redis.Nil.
type mockRedisClient struct {
	data   map[string]string
	getErr error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func newMockRedis() *mockRedisClient { return &mockRedisClient{data: map[string]string{}} }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Close() error                   { return nil }

func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }

func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func TestProductRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	newFixture := func() (*mockInnerProductRepo, *mockRedisClient, repository.ProductRepository) {
		inner := &mockInnerProductRepo{products: map[int64]*model.Product{
			1: {ID: 1, Name: "Netflix", Price: "1 - 150"},
		}}
		cache := newMockRedis()
		return inner, cache, NewProductRepoCacheDecorator(inner, cache, time.Minute)
	}

	t.Run("should serve the second read from cache", func(t *testing.T) {
		inner, _, repo := newFixture()

		first, err := repo.FindByID(ctx, nil, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := repo.FindByID(ctx, nil, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if inner.finds != 1 {
			t.Errorf("expected 1 database read, got %d", inner.finds)
		}
		if second.Name != first.Name || second.Price != "1 - 150" {
			t.Errorf("cached product differs: %+v vs %+v", second, first)
		}
	})

	t.Run("should invalidate on save", func(t *testing.T) {
		inner, cache, repo := newFixture()
		_, _ = repo.FindByID(ctx, nil, 1)

		if err := repo.Save(ctx, nil, &model.Product{ID: 1, Name: "Netflix", Price: "1 - 160"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := cache.data[productKey(1)]; ok {
			t.Fatal("expected cache entry to be dropped")
		}
		got, _ := repo.FindByID(ctx, nil, 1)

		if got.Price != "1 - 160" || inner.finds != 2 {
			t.Errorf("expected a fresh read, got %+v after %d reads", got, inner.finds)
		}
	})

	t.Run("should fall through when redis is down", func(t *testing.T) {
		inner, cache, repo := newFixture()
		cache.getErr = errors.New("connection refused")

		_, _ = repo.FindByID(ctx, nil, 1)
		_, err := repo.FindByID(ctx, nil, 1)

		if err != nil || inner.finds != 2 {
			t.Errorf("expected database reads while redis is down, got %d (%v)", inner.finds, err)
		}
	})

	t.Run("should not cache missing products", func(t *testing.T) {
		_, cache, repo := newFixture()

		_, err := repo.FindByID(ctx, nil, 99)

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(cache.data) != 0 {
			t.Errorf("expected empty cache, got %v", cache.data)
		}
	})

	t.Run("should count lookups under the product cache label", func(t *testing.T) {
		metrics.MustRegister()
		_, _, repo := newFixture()
		hits, misses := cacheRequests(t, "product", "hit"), cacheRequests(t, "product", "miss")

		_, _ = repo.FindByID(ctx, nil, 1)
		_, _ = repo.FindByID(ctx, nil, 1)

		if got := cacheRequests(t, "product", "miss") - misses; got != 1 {
			t.Errorf("expected 1 product miss, got %v", got)
		}
		if got := cacheRequests(t, "product", "hit") - hits; got != 1 {
			t.Errorf("expected 1 product hit, got %v", got)
		}
	})
}
