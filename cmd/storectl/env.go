package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// toolEnv holds the lazily opened resources shared by subcommands. Commands
// that only need config never dial the database.
type toolEnv struct {
	envFile string

	cfg   *config.Config
	logg  *logger.Logger
	db    *db.Client
	redis *redis.Client
}

func (rt *toolEnv) config() (*config.Config, *logger.Logger, error) {
	if rt.cfg != nil {
		return rt.cfg, rt.logg, nil
	}
	cfg, logg, err := bootstrap.LoadConfig("storectl", rt.envFile)
	if err != nil {
		return nil, nil, err
	}
	rt.cfg, rt.logg = cfg, logg
	return rt.cfg, rt.logg, nil
}

func (rt *toolEnv) database(ctx context.Context) (*db.Client, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	cfg, logg, err := rt.config()
	if err != nil {
		return nil, err
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.db = client
	return client, nil
}

// sqlDB is the pooled handle goose migrates through.
func (rt *toolEnv) sqlDB(ctx context.Context) (*sql.DB, error) {
	client, err := rt.database(ctx)
	if err != nil {
		return nil, err
	}
	return client.DB().DB()
}

func (rt *toolEnv) redisClient(ctx context.Context) (*redis.Client, error) {
	if rt.redis != nil {
		return rt.redis, nil
	}
	cfg, logg, err := rt.config()
	if err != nil {
		return nil, err
	}
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.redis = client
	return client, nil
}

func (rt *toolEnv) close(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil && rt.logg != nil {
			rt.logg.Error(ctx, "error closing redis", err)
		}
		rt.redis = nil
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil && rt.logg != nil {
			rt.logg.Error(ctx, "error closing database", err)
		}
		rt.db = nil
	}
}
