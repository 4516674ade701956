package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-service/internal/util"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const releaseTimeout = 3 * time.Second

type Client struct {
	rdb    *redis.Client
	locker *redislock.Client
	logger *zap.Logger
}

type releaser interface {
	Release(ctx context.Context) error
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(rdb), nil
}

// New wraps an existing connection
func New(rdb *redis.Client) *Client {
	return &Client{
		rdb:    rdb,
		locker: redislock.New(rdb),
		logger: util.GetLogger(),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// ClaimIdempotencyKey reserves key with an empty value. When the key is
// already held it returns its current value instead.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	ok, err := c.rdb.SetNX(ctx, idempotencyKey(key), "", ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}

	existing, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return c.ClaimIdempotencyKey(ctx, key, ttl)
	}
	if err != nil {
		return false, "", err
	}
	return false, existing, nil
}

// SetIdempotencyKey stores the result for an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// ReleaseIdempotencyKey forgets an idempotency key
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// WithLock runs fn while holding a distributed lock on key. It returns
// false without running fn when the lock is held elsewhere.
func (c *Client) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	lock, err := c.locker.Obtain(ctx, fmt.Sprintf("lock:%s", key), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	defer c.release(lock, key)

	return true, fn(ctx)
}

// release frees a held lock. A lock that cannot be released expires on
// its own after its TTL, so the failure is only logged.
func (c *Client) release(lock releaser, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := lock.Release(ctx); err != nil {
		c.logger.Warn("Failed to release lock",
			zap.String("key", key),
			zap.Error(err))
	}
}
