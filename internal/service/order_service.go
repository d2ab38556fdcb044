package service

import (
	"context"
	"fmt"
	"time"

	"checkout-core/internal/models"
	"checkout-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxOrderNumberAttempts = 5

// OrderStore persists orders and their immutable item snapshots.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	TransitionOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error)
	CancelOrder(ctx context.Context, orderID int64) (bool, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error

	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error
}

// Ledger is the inventory side the order factory reserves against.
type Ledger interface {
	Reserve(ctx context.Context, productID int64, quantity int) (bool, error)
	Release(ctx context.Context, productID int64, quantity int) error
	Commit(ctx context.Context, productID int64, quantity int) error
}

// Publisher emits order lifecycle events. Publishing is best-effort: a
// broker failure is logged, never surfaced to the shopper.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishStatusChanged(ctx context.Context, event *models.StatusChangedEvent) error
}

// PricingPolicy holds the checkout fee knobs.
type PricingPolicy struct {
	FreeShippingThreshold int64
	ShippingFee           int64
	CODSurcharge          int64
	Currency              string
}

// OrderService turns a mutable cart into an immutable order: validates the
// cart against inventory, computes totals, reserves stock and emits the
// order in its initial state.
type OrderService struct {
	store     OrderStore
	ledger    Ledger
	provider  PaymentProvider
	publisher Publisher
	pricing   PricingPolicy
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	ledger Ledger,
	provider PaymentProvider,
	publisher Publisher,
	pricing PricingPolicy,
) *OrderService {
	return &OrderService{
		store:     store,
		ledger:    ledger,
		provider:  provider,
		publisher: publisher,
		pricing:   pricing,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest carries the checkout form.
type PlaceOrderRequest struct {
	ShippingAddress string               `json:"shipping_address" binding:"required"`
	BillingAddress  string               `json:"billing_address" binding:"required"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" binding:"required"`
}

// PlaceOrderResponse is what the storefront needs to continue checkout.
type PlaceOrderResponse struct {
	OrderID          int64                `json:"order_id"`
	OrderNumber      string               `json:"order_number"`
	Status           models.OrderStatus   `json:"status"`
	PaymentStatus    models.PaymentStatus `json:"payment_status"`
	PaymentMethod    models.PaymentMethod `json:"payment_method"`
	TotalAmount      int64                `json:"total_amount"`
	ProviderOrderRef string               `json:"provider_order_ref,omitempty"`
}

// PlaceOrder converts the user's cart into an order. Stock is reserved for
// both payment methods the moment the order exists. COD orders move straight
// to PROCESSING and the cart is cleared; ONLINE orders stay PENDING and the
// cart is kept until payment verification succeeds.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", models.ErrInvalidStatus, req.PaymentMethod)
	}

	cart, err := s.store.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrEmptyCart
	}

	products, err := s.loadProducts(ctx, cart)
	if err != nil {
		return nil, err
	}

	// Revalidate every line against current stock before reserving anything,
	// so an obviously doomed order fails without partial reservations.
	for _, line := range cart {
		inv, err := s.store.GetInventory(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if inv.Available < line.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, &models.InsufficientStockError{ProductName: products[line.ProductID].Name}
		}
	}

	subtotal := int64(0)
	for _, line := range cart {
		subtotal += line.PriceAtAdd * int64(line.Quantity)
	}

	shipping := s.pricing.ShippingFee
	if subtotal > s.pricing.FreeShippingThreshold {
		shipping = 0
	}
	surcharge := int64(0)
	if req.PaymentMethod == models.PaymentMethodCOD {
		surcharge = s.pricing.CODSurcharge
	}
	total := subtotal + shipping + surcharge

	order := &models.Order{
		UserID:          userID,
		Subtotal:        subtotal,
		ShippingFee:     shipping,
		MethodSurcharge: surcharge,
		TotalAmount:     total,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}

	order.OrderNumber = util.GenerateOrderNumber()

	if req.PaymentMethod == models.PaymentMethodOnline {
		// Provider failure is absorbed: the shopper still gets a PENDING
		// order and can retry payment later.
		ref, err := s.provider.CreatePaymentIntent(ctx, total, s.pricing.Currency, order.OrderNumber)
		if err != nil {
			util.PaymentIntentFailures.Inc()
			s.logger.Warn("Proceeding without payment handle",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		} else {
			order.ProviderOrderRef = ref
		}
	}

	if err := s.persistWithUniqueNumber(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	eventItems := make([]models.OrderItemData, 0, len(cart))
	for _, line := range cart {
		item := &models.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.PriceAtAdd,
		}
		if err := s.store.CreateOrderItem(ctx, item); err != nil {
			// No stock is reserved yet; cancelling the half-written order
			// keeps it out of the pending set.
			if _, cErr := s.store.CancelOrder(ctx, order.ID); cErr != nil {
				s.logger.Error("Failed to cancel order after item write failure",
					zap.Int64("order_id", order.ID),
					zap.Error(cErr))
			}
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.PriceAtAdd,
		})
	}

	if err := s.reserveCart(ctx, order, cart, products); err != nil {
		return nil, err
	}

	if req.PaymentMethod == models.PaymentMethodCOD {
		if _, err := s.store.TransitionOrderStatus(ctx, order.ID,
			models.OrderStatusPending, models.OrderStatusProcessing); err != nil {
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
		order.Status = models.OrderStatusProcessing

		if err := s.store.ClearCart(ctx, userID); err != nil {
			s.logger.Error("Failed to clear cart after COD order",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}

	util.OrdersPlacedTotal.WithLabelValues(string(req.PaymentMethod)).Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.Int64("total_amount", total))

	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		Items:         eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &PlaceOrderResponse{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		TotalAmount:      order.TotalAmount,
		ProviderOrderRef: order.ProviderOrderRef,
	}, nil
}

// persistWithUniqueNumber inserts the order, regenerating the order number
// on a unique-constraint collision instead of hoping collisions never happen.
func (s *OrderService) persistWithUniqueNumber(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		err = s.store.CreateOrder(ctx, order)
		if err != models.ErrDuplicateOrderNumber {
			return err
		}
		util.OrderNumberRetriesTotal.Inc()
		s.logger.Warn("Order number collision, regenerating",
			zap.String("order_number", order.OrderNumber))
		order.OrderNumber = util.GenerateOrderNumber()
	}
	return err
}

// reserveCart holds stock for every line. On the first failed line all
// previously reserved lines are released and the order is cancelled: an
// order never holds a partial reservation.
func (s *OrderService) reserveCart(ctx context.Context, order *models.Order, cart []models.CartItem, products map[int64]models.Product) error {
	reserved := make([]models.CartItem, 0, len(cart))

	for _, line := range cart {
		ok, err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity)
		if err == nil && ok {
			reserved = append(reserved, line)
			continue
		}

		for _, r := range reserved {
			if relErr := s.ledger.Release(ctx, r.ProductID, r.Quantity); relErr != nil {
				s.logger.Error("Failed to compensate reservation",
					zap.Int64("order_id", order.ID),
					zap.Int64("product_id", r.ProductID),
					zap.Error(relErr))
			}
		}
		if _, cErr := s.store.CancelOrder(ctx, order.ID); cErr != nil {
			s.logger.Error("Failed to cancel order after reservation failure",
				zap.Int64("order_id", order.ID),
				zap.Error(cErr))
		}

		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("reservation_error").Inc()
			return fmt.Errorf("failed to reserve stock for product %d: %w", line.ProductID, err)
		}
		util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return &models.InsufficientStockError{ProductName: products[line.ProductID].Name}
	}

	return nil
}

func (s *OrderService) loadProducts(ctx context.Context, cart []models.CartItem) (map[int64]models.Product, error) {
	ids := make([]int64, len(cart))
	for i, line := range cart {
		ids[i] = line.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(cart) {
		return nil, models.ErrProductNotFound
	}

	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// OrderWithItems bundles an order with its immutable item snapshot.
type OrderWithItems struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// ListOrders returns the caller's orders; admins see everyone's.
func (s *OrderService) ListOrders(ctx context.Context, user models.AuthUser) ([]models.Order, error) {
	if user.IsAdmin() {
		return s.store.GetAllOrders(ctx)
	}
	return s.store.GetOrdersByUserID(ctx, user.ID)
}

// GetOrder returns one order with items. A foreign order answers not-found,
// never forbidden, so order IDs cannot be probed.
func (s *OrderService) GetOrder(ctx context.Context, user models.AuthUser, orderID int64) (*OrderWithItems, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && order.UserID != user.ID {
		return nil, models.ErrOrderNotFound
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderWithItems{Order: *order, Items: items}, nil
}

// CancelOrder moves a non-terminal order to CANCELLED and releases its
// reservation. The conditional cancel write makes the release happen exactly
// once even when two cancellations race. A PAID order is marked REFUNDED.
func (s *OrderService) CancelOrder(ctx context.Context, user models.AuthUser, orderID int64, reason string) error {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.CancelOrder", orderID)
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !user.IsAdmin() && order.UserID != user.ID {
		return models.ErrOrderNotFound
	}

	cancelled, err := s.store.CancelOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !cancelled {
		if order.Status == models.OrderStatusCancelled {
			return nil
		}
		return fmt.Errorf("%w: order is %s", models.ErrInvalidStatus, order.Status)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Failed to release stock on cancellation",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		if err := s.store.UpdatePaymentStatus(ctx, orderID, models.PaymentStatusRefunded); err != nil {
			s.logger.Error("Failed to mark order refunded",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Reason:      reason,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}

// UpdateOrderStatus is the admin fulfillment path. Transitions move only
// forward; setting the current status again is accepted as a harmless no-op.
// Cancelling routes through CancelOrder so stock is released; delivering a
// COD order burns the reservation.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, user models.AuthUser, orderID int64, target models.OrderStatus) error {
	if !user.IsAdmin() {
		return models.ErrForbidden
	}
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidStatus, target)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if target == order.Status {
		return nil
	}
	if target == models.OrderStatusCancelled {
		return s.CancelOrder(ctx, user, orderID, "cancelled by admin")
	}
	if !order.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatus, order.Status, target)
	}

	moved, err := s.store.TransitionOrderStatus(ctx, orderID, order.Status, target)
	if err != nil {
		return err
	}
	if !moved {
		return models.ErrConflict
	}

	if target == models.OrderStatusDelivered {
		items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := s.ledger.Commit(ctx, item.ProductID, item.Quantity); err != nil {
				s.logger.Error("Failed to commit stock on delivery",
					zap.Int64("order_id", orderID),
					zap.Int64("product_id", item.ProductID),
					zap.Error(err))
			}
		}
	}

	event := &models.StatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeStatusChanged),
		OrderID:   orderID,
		UserID:    order.UserID,
		OldStatus: order.Status,
		NewStatus: target,
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish StatusChanged event", zap.Error(err))
	}

	return nil
}

// UpdatePaymentStatusAdmin lets an admin correct payment state outside the
// verification path. Setting the current value is a no-op.
func (s *OrderService) UpdatePaymentStatusAdmin(ctx context.Context, user models.AuthUser, orderID int64, target models.PaymentStatus) error {
	if !user.IsAdmin() {
		return models.ErrForbidden
	}
	if !target.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", models.ErrInvalidStatus, target)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if target == order.PaymentStatus {
		return nil
	}
	if !order.PaymentStatus.CanTransitionTo(target) {
		return fmt.Errorf("%w: payment %s -> %s", models.ErrInvalidStatus, order.PaymentStatus, target)
	}

	return s.store.UpdatePaymentStatus(ctx, orderID, target)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
