package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/config"
	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/health"
	"github.com/noah-isme/basket-api/internal/lock"
	"github.com/noah-isme/basket-api/internal/store"
)

// application holds the long-lived dependencies shared by the HTTP layer.
type application struct {
	store   basket.Store
	redis   *redis.Client
	service *basket.Service
	closers []func() error
}

// Close releases dependencies in reverse order of acquisition.
func (a *application) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

func wire(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{}
	if cfg.RedisEnabled() {
		client, err := connectRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
		if err != nil {
			return nil, err
		}
		app.redis = client
		app.closers = append(app.closers, client.Close)
	}

	s, closeStore, err := openStore(ctx, cfg, app.redis)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("open %s store: %w", cfg.StoreDriver, err), app.Close())
	}
	app.store = s
	app.closers = append(app.closers, closeStore)

	if cfg.SeedDiscountCodes {
		codes := discount.DefaultCodes()
		if err := discount.Seed(ctx, s, codes); err != nil {
			return nil, multierr.Append(fmt.Errorf("seed discount codes: %w", err), app.Close())
		}
		logger.Info().Int("count", len(codes)).Msg("discount codes seeded")
	}

	app.service = &basket.Service{Store: s, LockTTL: cfg.LockTTL}
	if app.redis != nil {
		app.service.Locker = lock.Locker{
			R:            app.redis,
			Prefix:       cfg.RedisKeyPrefix,
			RetryBackoff: cfg.LockRetryBackoff,
			MaxWait:      cfg.LockTTL,
		}
	}
	return app, nil
}

func connectRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Warn().Err(err).Msg("redis tracing unavailable")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Warn().Err(err).Msg("redis metrics unavailable")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// openStore builds the store selected by STORE_DRIVER. Networked stores sit behind a breaker.
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (basket.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if cfg.DatabaseAutoMigrate {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := store.NewPostgresPool(ctx, cfg.DatabaseURL, "basket-api")
		if err != nil {
			return nil, nil, err
		}
		pg := &store.Postgres{Pool: pool}
		closePool := func() error {
			pool.Close()
			return nil
		}
		return store.NewGuarded(store.DriverPostgres, pg, cfg.StoreRetryAttempts, cfg.StoreRetryBackoff), closePool, nil
	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis store requires REDIS_URL")
		}
		rs := &store.Redis{R: redisClient, Prefix: cfg.RedisKeyPrefix}
		return store.NewGuarded(store.DriverRedis, rs, cfg.StoreRetryAttempts, cfg.StoreRetryBackoff), noop, nil
	case config.StoreSQLite:
		lite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return lite, lite.Close, nil
	default:
		return store.NewMemory(), noop, nil
	}
}

// readiness adapts the application to health.Checker.
type readiness struct {
	app *application
}

func (r readiness) PingStore(ctx context.Context, timeout time.Duration) error {
	if r.app.store == nil {
		return errors.New("store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.app.store.Ping(ctx)
}

func (r readiness) PingRedis(ctx context.Context, timeout time.Duration) error {
	if r.app.redis == nil {
		return health.ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.app.redis.Ping(ctx).Err()
}
