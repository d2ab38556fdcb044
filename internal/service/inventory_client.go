package service

import (
	"context"
	"errors"
	"time"

	"checkout-core/internal/models"
	"checkout-core/internal/redisclient"
	"checkout-core/internal/util"

	"go.uber.org/zap"
)

// InventoryStore is the database side of the ledger.
type InventoryStore interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) error
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
	ListInventory(ctx context.Context) ([]models.Inventory, error)
}

// InventoryCache is the Redis fast path of the ledger.
type InventoryCache interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error
	InitInventory(ctx context.Context, productID int64, available, reserved int) error
}

// InventoryClient is the inventory ledger: atomic per-product reserve,
// release and commit. Both the Redis and the database path perform the
// check and the decrement as one atomic operation, so concurrent
// reservations can never oversell a product.
type InventoryClient struct {
	store  InventoryStore
	cache  InventoryCache
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory ledger client
func NewInventoryClient(store InventoryStore, cache InventoryCache) *InventoryClient {
	return &InventoryClient{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// Reserve attempts to hold quantity units of a product. Returns false when
// stock is insufficient. The Redis Lua script is the fast path; the
// conditional database update is both the fallback and the source of truth.
func (ic *InventoryClient) Reserve(ctx context.Context, productID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if ic.cache != nil {
		ok, err := ic.cache.ReserveStock(ctx, productID, quantity)
		if err == nil {
			if !ok {
				util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
				return false, nil
			}
			// Mirror the hold into the database off the request path.
			go func() {
				syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := ic.store.ReserveStock(syncCtx, productID, quantity); err != nil {
					ic.logger.Error("Failed to sync reservation to DB",
						zap.Int64("product_id", productID),
						zap.Error(err))
				}
			}()
			return true, nil
		}

		if !errors.Is(err, redisclient.ErrNotCached) {
			ic.logger.Warn("Redis reservation failed, falling back to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	if err := ic.store.ReserveStock(ctx, productID, quantity); err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
			return false, nil
		}
		util.InventoryReservationsFailed.WithLabelValues("error").Inc()
		return false, err
	}
	return true, nil
}

// Release reverses a reservation. Exempt from stock checks; used on
// cancellation and on compensating a partially reserved order.
func (ic *InventoryClient) Release(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Release")
	defer span.End()

	if ic.cache != nil {
		if err := ic.cache.ReleaseStock(ctx, productID, quantity); err != nil {
			ic.logger.Error("Failed to release stock in Redis",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return ic.store.ReleaseStock(ctx, productID, quantity)
}

// Commit burns a reservation once the order is delivered
func (ic *InventoryClient) Commit(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Commit")
	defer span.End()

	if ic.cache != nil {
		if err := ic.cache.CommitStock(ctx, productID, quantity); err != nil {
			ic.logger.Error("Failed to commit stock in Redis",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return ic.store.CommitStock(ctx, productID, quantity)
}

// Available reports the sellable stock for a product
func (ic *InventoryClient) Available(ctx context.Context, productID int64) (int, error) {
	inv, err := ic.store.GetInventory(ctx, productID)
	if err != nil {
		return 0, err
	}
	return inv.Available, nil
}

// SyncInventoryToRedis primes the Redis fast path from the database ledger
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	if ic.cache == nil {
		return nil
	}

	ic.logger.Info("Starting inventory sync to Redis")

	invs, err := ic.store.ListInventory(ctx)
	if err != nil {
		return err
	}

	synced := 0
	for _, inv := range invs {
		if err := ic.cache.InitInventory(ctx, inv.ProductID, inv.Available, inv.Reserved); err != nil {
			ic.logger.Error("Failed to init Redis inventory",
				zap.Int64("product_id", inv.ProductID),
				zap.Error(err))
			continue
		}
		synced++
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", synced))
	return nil
}
