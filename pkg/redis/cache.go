package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Snapshot cache
// =============================================================================

// Cache JSON snapshots shared between gate instances (tickers, liquidity metrics)
// ⭐ SSOT: 캐시 키 레이아웃은 "<prefix>:cache:<kind>:<symbol>"
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a snapshot cache under prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get decodes the snapshot stored at key into dest; a miss is (false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores a snapshot. Snapshots always expire: ttl must be positive.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("cache set %s: ttl must be positive, got %s", key, ttl)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Redis().Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Evict drops snapshots so the next read goes to the source
func (c *Cache) Evict(ctx context.Context, keys ...string) error {
	if !c.client.Enabled() || len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Redis().Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	return nil
}

func (c *Cache) key(key string) string {
	return c.prefix + ":cache:" + key
}

// LiquidityMetricsKey liquidity monitor snapshot
func LiquidityMetricsKey(symbol string) string {
	return "liquidity:metrics:" + symbol
}

// TickerKey exchange ticker snapshot
func TickerKey(symbol string) string {
	return "ticker:" + symbol
}
