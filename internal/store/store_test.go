package store

import (
	"context"
	"testing"
	"time"

	"checkout-core/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(db), mock
}

func TestReserveStock(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE inventory").
		WithArgs(2, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.ReserveStock(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveStockInsufficient(t *testing.T) {
	s, mock := newTestStore(t)

	// The conditional update touches no row when available < quantity.
	mock.ExpectExec("UPDATE inventory").
		WithArgs(5, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ReserveStock(context.Background(), 1, 5)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder(t *testing.T) {
	s, mock := newTestStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs("ORD-20260830-120000-0042", int64(7), int64(200), int64(50), int64(40),
			int64(290), models.OrderStatusPending, models.PaymentStatusPending,
			models.PaymentMethodCOD, "", "", "12 Main St", "12 Main St").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))

	order := &models.Order{
		OrderNumber:     "ORD-20260830-120000-0042",
		UserID:          7,
		Subtotal:        200,
		ShippingFee:     50,
		MethodSurcharge: 40,
		TotalAmount:     290,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   models.PaymentMethodCOD,
		ShippingAddress: "12 Main St",
		BillingAddress:  "12 Main St",
	}
	err := s.CreateOrder(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, now, order.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderNumberCollision(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("INSERT INTO orders").
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := s.CreateOrder(context.Background(), &models.Order{OrderNumber: "ORD-DUP"})
	assert.ErrorIs(t, err, models.ErrDuplicateOrderNumber)
}

func TestGetOrderByIDNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT \\* FROM orders WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetOrderByID(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestMarkOrderPaid(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(models.PaymentStatusPaid, models.OrderStatusPending, models.OrderStatusProcessing,
			"po_123", "pay_456", int64(42), models.PaymentStatusPending, models.OrderStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	paid, err := s.MarkOrderPaid(context.Background(), 42, "po_123", "pay_456")
	require.NoError(t, err)
	assert.True(t, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOrderPaidAlreadyPaid(t *testing.T) {
	s, mock := newTestStore(t)

	// payment_status is no longer PENDING, the conditional write misses.
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 0))

	paid, err := s.MarkOrderPaid(context.Background(), 42, "po_123", "pay_456")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestMarkOrderPaidCancelledOrderUntouched(t *testing.T) {
	s, mock := newTestStore(t)

	// The status guard keeps a cancelled order out of reach even while its
	// payment_status is still PENDING.
	mock.ExpectExec("UPDATE orders").
		WithArgs(models.PaymentStatusPaid, models.OrderStatusPending, models.OrderStatusProcessing,
			"po_123", "pay_456", int64(42), models.PaymentStatusPending, models.OrderStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	paid, err := s.MarkOrderPaid(context.Background(), 42, "po_123", "pay_456")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestTransitionOrderStatus(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusShipped, int64(42), models.OrderStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := s.TransitionOrderStatus(context.Background(), 42,
		models.OrderStatusProcessing, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.True(t, moved)
}

func TestCancelOrderTerminalOrderUntouched(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusCancelled, int64(42),
			models.OrderStatusDelivered, models.OrderStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cancelled, err := s.CancelOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestUpsertCartItemAccumulatesQuantity(t *testing.T) {
	s, mock := newTestStore(t)

	now := time.Now()
	// Adding 2 to a line holding 3 lands on 5, price_at_add stays at the
	// original 100 regardless of the price passed in.
	mock.ExpectQuery("INSERT INTO cart_items").
		WithArgs(int64(7), int64(1), 2, int64(120)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "price_at_add", "created_at", "updated_at"}).
			AddRow(int64(5), 5, int64(100), now, now))

	item := &models.CartItem{UserID: 7, ProductID: 1, Quantity: 2, PriceAtAdd: 120}
	err := s.UpsertCartItem(context.Background(), item)

	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, int64(100), item.PriceAtAdd)
}

func TestSetCartItemQuantityMissingLine(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE cart_items").
		WithArgs(4, int64(7), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetCartItemQuantity(context.Background(), 7, 9, 4)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestGetCartItemAbsentIsNil(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT \\* FROM cart_items").
		WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	item, err := s.GetCartItem(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestMarkEventProcessedIdempotent(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("evt-1", "ORDER_CREATED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MarkEventProcessed(context.Background(), "evt-1", "ORDER_CREATED")
	require.NoError(t, err)
}
