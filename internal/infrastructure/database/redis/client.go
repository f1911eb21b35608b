// Package redis holds the cross-run coordination state kept in Redis: the
// upstream rate-limit cooldown gate and the pipeline run lock.
package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.CodeCacheError, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.CodeCacheError, "redis connection failed")
)

// DefaultKeyPrefix namespaces every key this package writes.
const DefaultKeyPrefix = "trialscope:"

// Client wraps a standalone go-redis client.
type Client struct {
	rdb    *redis.Client
	prefix string
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient connects to cfg.Addr and verifies the connection with a ping.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(&cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	c := NewClientWithRedis(rdb, cfg.KeyPrefix, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}
	log.Info("redis client connected", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return c, nil
}

// NewClientWithRedis wraps an existing go-redis client.
func NewClientWithRedis(rdb *redis.Client, prefix string, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Client{rdb: rdb, prefix: prefix, logger: log}
}

func applyDefaults(cfg *config.RedisConfig) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 4
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
}

// Key returns name under the client's prefix.
func (c *Client) Key(parts ...string) string {
	return c.prefix + strings.Join(parts, ":")
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rdb.Close()
	if err == nil {
		c.logger.Info("closed redis client")
	} else {
		c.logger.Error("failed to close redis client", logging.Err(err))
	}
	return err
}

// Underlying returns the wrapped go-redis client, or an error once closed.
func (c *Client) Underlying() (*redis.Client, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	return c.rdb, nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
