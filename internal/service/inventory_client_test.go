package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkout-core/internal/models"
	"checkout-core/internal/redisclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInventoryStore struct {
	mock.Mock
}

func (m *mockInventoryStore) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockInventoryStore) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockInventoryStore) CommitStock(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockInventoryStore) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inventory), args.Error(1)
}

func (m *mockInventoryStore) ListInventory(ctx context.Context) ([]models.Inventory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Inventory), args.Error(1)
}

type mockInventoryCache struct {
	mock.Mock
}

func (m *mockInventoryCache) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *mockInventoryCache) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockInventoryCache) CommitStock(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockInventoryCache) InitInventory(ctx context.Context, productID int64, available, reserved int) error {
	args := m.Called(ctx, productID, available, reserved)
	return args.Error(0)
}

func TestReserveFastPathSyncsToDB(t *testing.T) {
	store := new(mockInventoryStore)
	cache := new(mockInventoryCache)
	ic := NewInventoryClient(store, cache)

	cache.On("ReserveStock", mock.Anything, int64(1), 2).Return(true, nil)
	synced := make(chan struct{})
	store.On("ReserveStock", mock.Anything, int64(1), 2).
		Run(func(mock.Arguments) { close(synced) }).Return(nil)

	ok, err := ic.Reserve(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case <-synced:
	case <-time.After(time.Second):
		t.Fatal("reservation was not mirrored to the database")
	}
}

func TestReserveFastPathInsufficient(t *testing.T) {
	store := new(mockInventoryStore)
	cache := new(mockInventoryCache)
	ic := NewInventoryClient(store, cache)

	cache.On("ReserveStock", mock.Anything, int64(1), 5).Return(false, nil)

	ok, err := ic.Reserve(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	// A Redis rejection is final, the DB is not consulted.
	store.AssertNotCalled(t, "ReserveStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveFallsBackWhenNotCached(t *testing.T) {
	store := new(mockInventoryStore)
	cache := new(mockInventoryCache)
	ic := NewInventoryClient(store, cache)

	cache.On("ReserveStock", mock.Anything, int64(1), 2).Return(false, redisclient.ErrNotCached)
	store.On("ReserveStock", mock.Anything, int64(1), 2).Return(nil)

	ok, err := ic.Reserve(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	store.AssertExpectations(t)
}

func TestReserveFallsBackWhenRedisDown(t *testing.T) {
	store := new(mockInventoryStore)
	cache := new(mockInventoryCache)
	ic := NewInventoryClient(store, cache)

	cache.On("ReserveStock", mock.Anything, int64(1), 2).Return(false, errors.New("connection refused"))
	store.On("ReserveStock", mock.Anything, int64(1), 2).Return(models.ErrInsufficientStock)

	ok, err := ic.Reserve(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserveWithoutCacheUsesDB(t *testing.T) {
	store := new(mockInventoryStore)
	ic := NewInventoryClient(store, nil)

	store.On("ReserveStock", mock.Anything, int64(1), 2).Return(nil)

	ok, err := ic.Reserve(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncInventoryToRedis(t *testing.T) {
	store := new(mockInventoryStore)
	cache := new(mockInventoryCache)
	ic := NewInventoryClient(store, cache)

	store.On("ListInventory", mock.Anything).Return([]models.Inventory{
		{ProductID: 1, Available: 10, Reserved: 2},
		{ProductID: 2, Available: 0, Reserved: 5},
	}, nil)
	cache.On("InitInventory", mock.Anything, int64(1), 10, 2).Return(nil)
	cache.On("InitInventory", mock.Anything, int64(2), 0, 5).Return(nil)

	require.NoError(t, ic.SyncInventoryToRedis(context.Background()))
	cache.AssertExpectations(t)
}
