// Package registry reserves project identifiers so that no two deployments
// ever share a namespace.
package registry

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
)

// Registry claims identifiers. Reserve returns true when id was free and is now
// owned by the caller, false when another caller already holds it.
type Registry interface {
	Reserve(ctx context.Context, id string) (bool, error)
	Close() error
}

// New builds the registry selected by cfg.
func New(cfg config.RegistryConfig) (Registry, error) {
	switch cfg.Type {
	case config.RegistryMemory, "":
		return NewMemoryRegistry(), nil
	case config.RegistrySQLite:
		return NewSQLiteRegistry(cfg.Path)
	case config.RegistryRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return NewRedisRegistry(client, cfg.KeyPrefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported registry type: %s", cfg.Type)
	}
}
