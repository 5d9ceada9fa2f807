package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var errCacheMiss = errors.New("cache miss")

// RedisConfig configures a RedisChallengeCache.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL as accepted by redis.ParseURL.
	URL string

	// Prefix namespaces keys (default: DefaultRedisPrefix).
	Prefix string

	// TTL is the lifetime of a pending authorization. Zero means no expiry.
	TTL time.Duration
}

// redisClient is the subset of Redis used by the cache.
type redisClient interface {
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	getDel(ctx context.Context, key string) ([]byte, error)
	ping(ctx context.Context) error
	close() error
}

// RedisChallengeCache is a ChallengeCache shared by all replicas through Redis.
type RedisChallengeCache struct {
	client redisClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisChallengeCache connects to Redis and verifies the connection.
func NewRedisChallengeCache(ctx context.Context, config RedisConfig, logger *slog.Logger) (*RedisChallengeCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := &redisClientWrapper{client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.ping(pingCtx); err != nil {
		_ = client.close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis challenge cache", "addr", opts.Addr, "db", opts.DB)
	return newRedisChallengeCache(client, config, logger), nil
}

func newRedisChallengeCache(client redisClient, config RedisConfig, logger *slog.Logger) *RedisChallengeCache {
	if config.Prefix == "" {
		config.Prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisChallengeCache{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
		now:    time.Now,
		logger: logger,
	}
}

func (c *RedisChallengeCache) Create(ctx context.Context) (string, string, error) {
	state, pending, err := newPendingAuthorization(c.now())
	if err != nil {
		return "", "", err
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal pending authorization: %w", err)
	}
	if err := c.client.set(ctx, c.prefix+state, data, c.ttl); err != nil {
		return "", "", fmt.Errorf("failed to store pending authorization: %w", err)
	}
	return state, pending.Challenge, nil
}

func (c *RedisChallengeCache) Consume(ctx context.Context, state string) (string, error) {
	data, err := c.client.getDel(ctx, c.prefix+state)
	if errors.Is(err, errCacheMiss) {
		return "", ErrInvalidState
	}
	if err != nil {
		c.logger.Warn("Failed to read pending authorization", "error", err)
		return "", fmt.Errorf("failed to read pending authorization: %w", err)
	}

	var pending PendingAuthorization
	if err := json.Unmarshal(data, &pending); err != nil {
		c.logger.Warn("Discarding malformed pending authorization", "error", err)
		return "", ErrInvalidState
	}
	return pending.Verifier, nil
}

// Ping checks the Redis connection.
func (c *RedisChallengeCache) Ping(ctx context.Context) error {
	return c.client.ping(ctx)
}

// Close closes the Redis connection.
func (c *RedisChallengeCache) Close() error {
	return c.client.close()
}

type redisClientWrapper struct {
	client *redis.Client
}

func (w *redisClientWrapper) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return w.client.Set(ctx, key, value, ttl).Err()
}

// getDel reads and deletes key in one command.
func (w *redisClientWrapper) getDel(ctx context.Context, key string) ([]byte, error) {
	val, err := w.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return val, err
}

func (w *redisClientWrapper) ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

func (w *redisClientWrapper) close() error {
	return w.client.Close()
}
