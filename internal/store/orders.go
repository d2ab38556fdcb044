package store

import (
	"context"
	"database/sql"
	"errors"

	"checkout-core/internal/models"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// CreateOrder inserts a new order row. A collision on the generated order
// number surfaces as ErrDuplicateOrderNumber so the caller can regenerate.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			order_number, user_id, subtotal, shipping_fee, method_surcharge,
			total_amount, status, payment_status, payment_method,
			provider_order_ref, provider_payment_ref,
			shipping_address, billing_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		order.OrderNumber, order.UserID, order.Subtotal, order.ShippingFee,
		order.MethodSurcharge, order.TotalAmount, order.Status,
		order.PaymentStatus, order.PaymentMethod,
		order.ProviderOrderRef, order.ProviderPaymentRef,
		order.ShippingAddress, order.BillingAddress,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return models.ErrDuplicateOrderNumber
	}
	return err
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetAllOrders retrieves every order, newest first (admin read path)
func (s *Store) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// MarkOrderPaid transitions payment state PENDING -> PAID and, when the
// order is still PENDING, fulfillment PENDING -> PROCESSING, recording the
// provider references. The WHERE clause on payment_status makes this a
// conditional write: of two concurrent verifications exactly one updates the
// row. A cancelled order never accepts a payment, its stock is already
// released. Returns true when this call performed the transition.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID int64, providerOrderRef, providerPaymentRef string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET payment_status = $1,
		     status = CASE WHEN status = $2 THEN $3 ELSE status END,
		     provider_order_ref = $4,
		     provider_payment_ref = $5,
		     updated_at = NOW()
		 WHERE id = $6 AND payment_status = $7 AND status <> $8`,
		models.PaymentStatusPaid, models.OrderStatusPending, models.OrderStatusProcessing,
		providerOrderRef, providerPaymentRef,
		orderID, models.PaymentStatusPending, models.OrderStatusCancelled)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// TransitionOrderStatus updates status only when the row still holds the
// expected current status. Returns true when the write happened.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CancelOrder moves any non-terminal order to CANCELLED. Returns true when
// this call performed the transition, so stock is released exactly once even
// under concurrent cancellation.
func (s *Store) CancelOrder(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status NOT IN ($3, $4)",
		models.OrderStatusCancelled, orderID,
		models.OrderStatusDelivered, models.OrderStatusCancelled)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpdatePaymentStatus sets payment status unconditionally (admin path)
func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}
