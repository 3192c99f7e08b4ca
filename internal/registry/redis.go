package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// setNXClient is the part of *redis.Client the registry needs.
type setNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisRegistry shares reservations between dispatcher replicas.
type RedisRegistry struct {
	client setNXClient
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry uses SETNX on prefix+id. A zero ttl keeps keys forever.
func NewRedisRegistry(client setNXClient, prefix string, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRegistry) Reserve(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+id, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
