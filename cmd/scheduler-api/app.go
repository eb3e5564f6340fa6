package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/pkg/cache"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	"github.com/noah-isme/clinic-scheduler-api/pkg/database"
	"github.com/noah-isme/clinic-scheduler-api/pkg/events"
	"github.com/noah-isme/clinic-scheduler-api/pkg/logger"
)

// app holds the process-wide resources shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client
}

// bootstrap loads config and opens Postgres. Redis is dialed when requireRedis
// is set or any Redis-backed feature is enabled.
func bootstrap(ctx context.Context, requireRedis bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt := &app{cfg: cfg, logger: logr, db: db}

	if requireRedis || usesRedis(cfg) {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.redis = client
	}
	return rt, nil
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Availability.CacheEnabled || cfg.Notifications.Enabled || cfg.Reminders.Enabled
}

// publisher wraps the Redis event bus with a circuit breaker.
func (r *app) publisher() events.Publisher {
	inner := events.NewRedisPublisher(r.redis, r.logger)
	return events.NewBreakerPublisher(inner, events.BreakerConfig{
		Name:             "booking-events",
		FailureThreshold: r.cfg.Notifications.BreakerFailures,
		OpenTimeout:      r.cfg.Notifications.BreakerTimeout,
	}, r.logger)
}

func (r *app) Close() {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
	_ = r.logger.Sync()
}
