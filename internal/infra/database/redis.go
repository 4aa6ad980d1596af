package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/diamond-portal/internal/config"
)

// NewRedis connects the registry event bus and checks that it answers.
func NewRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
