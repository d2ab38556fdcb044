package service

import (
	"context"

	"checkout-core/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderItem), args.Error(1)
}

func (m *mockOrderStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderStore) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderStore) TransitionOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderStore) CancelOrder(ctx context.Context, orderID int64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderStore) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockOrderStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *mockOrderStore) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inventory), args.Error(1)
}

func (m *mockOrderStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CartItem), args.Error(1)
}

func (m *mockOrderStore) ClearCart(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Reserve(ctx context.Context, productID int64, quantity int) (bool, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Release(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *mockLedger) Commit(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishStatusChanged(ctx context.Context, event *models.StatusChangedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockPaymentProvider struct {
	mock.Mock
}

func (m *mockPaymentProvider) CreatePaymentIntent(ctx context.Context, amount int64, currency, reference string) (string, error) {
	args := m.Called(ctx, amount, currency, reference)
	return args.String(0), args.Error(1)
}

type mockCartStore struct {
	mock.Mock
}

func (m *mockCartStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CartItem), args.Error(1)
}

func (m *mockCartStore) GetCartItem(ctx context.Context, userID, productID int64) (*models.CartItem, error) {
	args := m.Called(ctx, userID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartItem), args.Error(1)
}

func (m *mockCartStore) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockCartStore) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	args := m.Called(ctx, userID, productID, quantity)
	return args.Error(0)
}

func (m *mockCartStore) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

func (m *mockCartStore) ClearCart(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockProductReader struct {
	mock.Mock
}

func (m *mockProductReader) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockProductReader) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inventory), args.Error(1)
}

type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockPaymentStore) MarkOrderPaid(ctx context.Context, orderID int64, providerOrderRef, providerPaymentRef string) (bool, error) {
	args := m.Called(ctx, orderID, providerOrderRef, providerPaymentRef)
	return args.Bool(0), args.Error(1)
}

func (m *mockPaymentStore) ClearCart(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
