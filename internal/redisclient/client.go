package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bobapos/internal/models"

	"github.com/go-redis/redis/v8"
)

const menuCacheKey = "menu:catalog"

type Client struct {
	rdb     *redis.Client
	menuTTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int, menuTTL time.Duration) (*Client, error) {
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

	return &Client{rdb: rdb, menuTTL: menuTTL}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetMenu returns the cached catalog, or nil on a miss.
func (c *Client) GetMenu(ctx context.Context) ([]models.MenuItem, error) {
	payload, err := c.rdb.Get(ctx, menuCacheKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("menu cache read failed: %w", err)
	}

	var items []models.MenuItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("menu cache decode failed: %w", err)
	}
	return items, nil
}

// SetMenu caches the catalog with the configured TTL.
func (c *Client) SetMenu(ctx context.Context, items []models.MenuItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("menu cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, menuCacheKey, payload, c.menuTTL).Err()
}

// InvalidateMenu drops the cached catalog. Called whenever stock movement
// may have flipped an availability flag.
func (c *Client) InvalidateMenu(ctx context.Context) error {
	return c.rdb.Del(ctx, menuCacheKey).Err()
}
