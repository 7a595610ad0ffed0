package server

import (
	"context"
	"fmt"
	"log/slog"

	"buildsession/internal/config"

	"github.com/redis/go-redis/v9"
)

// Dependency 管理所有基础设施
type Dependency struct {
	Redis  *redis.Client
	Logger *slog.Logger
}

// InitDeps connects the optional infrastructure. Redis is only dialled when
// the frame mirror is enabled.
func InitDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependency, error) {
	deps := &Dependency{Logger: logger}
	if !cfg.Redis.Enabled {
		return deps, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("redis ping (%s): %w", cfg.Redis.Addr, err)
	}
	deps.Redis = redisClient
	return deps, nil
}

func (d *Dependency) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
}
