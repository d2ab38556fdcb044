package service

import (
	"context"
	"fmt"

	"checkout-core/internal/models"
	"checkout-core/internal/util"

	"go.uber.org/zap"
)

// CartStore persists a user's pending cart lines.
type CartStore interface {
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	GetCartItem(ctx context.Context, userID, productID int64) (*models.CartItem, error)
	UpsertCartItem(ctx context.Context, item *models.CartItem) error
	SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// ProductReader gives the cart read access to the catalog.
type ProductReader interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
}

// CartService handles a user's pending cart. One cart per user, created
// lazily; the price a line carries is captured at add time.
type CartService struct {
	store    CartStore
	products ProductReader
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore, products ProductReader) *CartService {
	return &CartService{
		store:    store,
		products: products,
		logger:   util.GetLogger(),
	}
}

// GetCart returns the user's cart lines; an empty slice is an empty cart
func (cs *CartService) GetCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return cs.store.GetCartItems(ctx, userID)
}

// AddItem puts quantity units of a product into the cart. Adding a product
// already present increments its line instead of duplicating it, and the
// requested total for that product is validated against current stock.
func (cs *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	product, err := cs.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	existing, err := cs.store.GetCartItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	requestedTotal := quantity
	if existing != nil {
		requestedTotal += existing.Quantity
	}

	inv, err := cs.products.GetInventory(ctx, productID)
	if err != nil {
		return nil, err
	}
	if inv.Available < requestedTotal {
		return nil, &models.InsufficientStockError{ProductName: product.Name}
	}

	item := &models.CartItem{
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		PriceAtAdd: product.Price,
	}
	if err := cs.store.UpsertCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	cs.logger.Debug("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// SetQuantity overwrites a line's quantity; zero or less removes the line
func (cs *CartService) SetQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return cs.store.RemoveCartItem(ctx, userID, productID)
	}

	inv, err := cs.products.GetInventory(ctx, productID)
	if err != nil {
		return err
	}
	if inv.Available < quantity {
		product, perr := cs.products.GetProductByID(ctx, productID)
		name := fmt.Sprintf("product %d", productID)
		if perr == nil {
			name = product.Name
		}
		return &models.InsufficientStockError{ProductName: name}
	}

	return cs.store.SetCartItemQuantity(ctx, userID, productID, quantity)
}

// RemoveItem deletes one line from the cart
func (cs *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	return cs.store.RemoveCartItem(ctx, userID, productID)
}

// Clear empties the cart
func (cs *CartService) Clear(ctx context.Context, userID int64) error {
	return cs.store.ClearCart(ctx, userID)
}
