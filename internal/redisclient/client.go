package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client stores namespaced records as plain redis string keys.
// SET replaces a value atomically, so a failed write never leaves a partial record.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Load reads the record stored under namespace
func (c *Client) Load(ctx context.Context, namespace string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("record %s: %w", namespace, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", namespace, err)
	}
	return data, nil
}

// Save replaces the record stored under namespace
func (c *Client) Save(ctx context.Context, namespace string, payload []byte) error {
	if err := c.rdb.Set(ctx, namespace, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", namespace, err)
	}
	return nil
}

// Remove deletes the record stored under namespace
func (c *Client) Remove(ctx context.Context, namespace string) error {
	return c.rdb.Del(ctx, namespace).Err()
}
