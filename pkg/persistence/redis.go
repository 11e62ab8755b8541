package persistence

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache owns a Redis client. Like PostgresStore, it does not own any
// key scheme itself: callers reuse Client() to publish their own keys
// against the same connection (see pkg/tlsport/metrics).
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

// RedisCacheConfig holds Redis configuration
type RedisCacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache dials and pings a Redis client.
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	log.Println("Redis connection established")
	return &RedisCache{
		client: client,
		ctx:    ctx,
		ttl:    ttl,
	}, nil
}

// Client returns the underlying Redis client, for packages that publish
// their own keys against the same connection (e.g. pkg/tlsport/metrics)
// without opening a second client.
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	log.Println("Closing Redis connection")
	return rc.client.Close()
}

// Health checks if Redis is healthy
func (rc *RedisCache) Health() error {
	return rc.client.Ping(rc.ctx).Err()
}
