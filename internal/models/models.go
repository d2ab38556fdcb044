package models

import "time"

// Product is owned by the catalog subsystem. The order lifecycle only reads
// price and stock and mutates stock through the inventory ledger.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Inventory tracks sellable stock per product. Available is what a new order
// may still reserve; Reserved is held by orders that are not yet delivered.
type Inventory struct {
	ProductID int64     `db:"product_id" json:"product_id"`
	Available int       `db:"available" json:"available"`
	Reserved  int       `db:"reserved" json:"reserved"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem is one line of a user's pending cart. PriceAtAdd is captured when
// the product is added and is the price carried into the order, deliberately
// shielding the shopper from mid-cart price changes.
type CartItem struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	PriceAtAdd int64     `db:"price_at_add" json:"price_at_add"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Order is an immutable snapshot of a checked-out cart. Items and TotalAmount
// never change after creation; only Status and PaymentStatus move, and only
// forward.
type Order struct {
	ID                 int64         `db:"id" json:"id"`
	OrderNumber        string        `db:"order_number" json:"order_number"`
	UserID             int64         `db:"user_id" json:"user_id"`
	Subtotal           int64         `db:"subtotal" json:"subtotal"`
	ShippingFee        int64         `db:"shipping_fee" json:"shipping_fee"`
	MethodSurcharge    int64         `db:"method_surcharge" json:"method_surcharge"`
	TotalAmount        int64         `db:"total_amount" json:"total_amount"`
	Status             OrderStatus   `db:"status" json:"status"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentMethod      PaymentMethod `db:"payment_method" json:"payment_method"`
	ProviderOrderRef   string        `db:"provider_order_ref" json:"provider_order_ref,omitempty"`
	ProviderPaymentRef string        `db:"provider_payment_ref" json:"provider_payment_ref,omitempty"`
	ShippingAddress    string        `db:"shipping_address" json:"shipping_address"`
	BillingAddress     string        `db:"billing_address" json:"billing_address"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// OrderItem is one line of the order snapshot. Price is the cart's
// price-at-add, not the live catalog price.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	Price     int64  `db:"price" json:"price"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodCOD    PaymentMethod = "COD"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// Valid reports whether s is one of the enumerated order statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusRank[s]
	return ok || s == OrderStatusCancelled
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether target is reachable from s. Fulfillment
// moves strictly forward; CANCELLED is reachable from any non-terminal state.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if target == OrderStatusCancelled {
		return true
	}
	from, ok := orderStatusRank[s]
	to, ok2 := orderStatusRank[target]
	return ok && ok2 && to > from
}

var paymentStatusRank = map[PaymentStatus]int{
	PaymentStatusPending:  0,
	PaymentStatusFailed:   1,
	PaymentStatusPaid:     2,
	PaymentStatusRefunded: 3,
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatusRank[s]
	return ok
}

// CanTransitionTo reports whether target is reachable from s. Payment state
// only moves forward: a failed attempt may still succeed, a paid order may
// be refunded, but money never becomes un-received.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	from, ok := paymentStatusRank[s]
	to, ok2 := paymentStatusRank[target]
	return ok && ok2 && to > from
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodOnline || m == PaymentMethodCOD
}

// ProcessedEvent for idempotent event consumption
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// User identity as handed over by the auth subsystem. The order lifecycle
// never authenticates; it only enforces ownership.
type AuthUser struct {
	ID    int64
	Role  string
}

const RoleAdmin = "admin"

// IsAdmin reports whether the user may see and mutate all orders.
func (u AuthUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}
