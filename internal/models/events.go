package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypePaymentFailed  = "PAYMENT_FAILED"
	EventTypeStatusChanged  = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after an order row exists and stock is reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	TotalAmount   int64           `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Items         []OrderItemData `json:"items"`
}

// OrderPaidEvent published when online payment verification succeeds or a
// COD payment is confirmed
type OrderPaidEvent struct {
	BaseEvent
	OrderID            int64  `json:"order_id"`
	OrderNumber        string `json:"order_number"`
	UserID             int64  `json:"user_id"`
	Amount             int64  `json:"amount"`
	ProviderPaymentRef string `json:"provider_payment_ref,omitempty"`
}

// OrderCancelledEvent published when an order is cancelled and its stock
// released
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
	Reason      string `json:"reason"`
}

// PaymentFailedEvent published when a verification attempt is rejected
type PaymentFailedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// StatusChangedEvent published on admin fulfillment updates
type StatusChangedEvent struct {
	BaseEvent
	OrderID   int64       `json:"order_id"`
	UserID    int64       `json:"user_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}
