package models

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrConflict             = errors.New("conflicting concurrent update")
	ErrInvalidStatus        = errors.New("invalid status transition")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
)

// InsufficientStockError carries the product name so the storefront can show
// an actionable message.
type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
