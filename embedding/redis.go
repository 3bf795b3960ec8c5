package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/storage"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores vectors in Redis under a key prefix, mus-encoded.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps client. A zero ttl keeps entries until evicted by Redis.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "profmatch:emb:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Get returns the cached vector, reporting a miss for absent keys.
func (r *RedisCache) Get(ctx context.Context, key string) (core.Vector, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := storage.UnmarshalVector(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set stores v under key.
func (r *RedisCache) Set(ctx context.Context, key string, v core.Vector) error {
	return r.client.Set(ctx, r.prefix+key, storage.MarshalVector(v), r.ttl).Err()
}
