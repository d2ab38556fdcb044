package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

// ErrNotCached signals the product has no inventory entry in Redis; callers
// fall back to the database ledger.
var ErrNotCached = errors.New("inventory not cached")

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(productID int64) string {
	return fmt.Sprintf("inventory:%d", productID)
}

// ReserveStock atomically checks and decrements available stock in one Lua
// invocation. Returns false when stock is insufficient and ErrNotCached when
// the product is not in Redis.
func (c *Client) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, ErrNotCached
	}
}

// ReleaseStock atomically returns reserved stock to available
func (c *Client) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// CommitStock atomically burns reserved stock after delivery
func (c *Client) CommitStock(ctx context.Context, productID int64, quantity int) error {
	_, err := c.commitScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}
	return nil
}

// InitInventory initializes inventory counts in Redis
func (c *Client) InitInventory(ctx context.Context, productID int64, available, reserved int) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, inventoryKey(productID), "available", available)
	pipe.HSet(ctx, inventoryKey(productID), "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// GetInventory retrieves current inventory counts
func (c *Client) GetInventory(ctx context.Context, productID int64) (available, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, inventoryKey(productID)).Result()
	if err != nil {
		return 0, 0, err
	}

	if len(result) == 0 {
		return 0, 0, ErrNotCached
	}

	fmt.Sscanf(result["available"], "%d", &available)
	fmt.Sscanf(result["reserved"], "%d", &reserved)
	return available, reserved, nil
}
