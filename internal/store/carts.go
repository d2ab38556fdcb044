package store

import (
	"context"
	"database/sql"

	"checkout-core/internal/models"
)

// GetCartItems returns a user's cart lines in insertion order. The cart is a
// lazy singleton: a user with no rows simply has an empty cart.
func (s *Store) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY created_at", userID)
	return items, err
}

// GetCartItem returns the line for one product, or nil if absent
func (s *Store) GetCartItem(ctx context.Context, userID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertCartItem adds quantity to an existing line or inserts a new one.
// On conflict the stored price_at_add is kept: the price the shopper saw
// when the product first entered the cart is the price that sticks.
func (s *Store) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, price_at_add)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, quantity, price_at_add, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		item.UserID, item.ProductID, item.Quantity, item.PriceAtAdd,
	).Scan(&item.ID, &item.Quantity, &item.PriceAtAdd, &item.CreatedAt, &item.UpdatedAt)
}

// SetCartItemQuantity overwrites the quantity on an existing line
func (s *Store) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE user_id = $2 AND product_id = $3",
		quantity, userID, productID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// RemoveCartItem deletes one line from the cart
func (s *Store) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	return err
}

// ClearCart removes every line for a user. Clearing an already-empty cart is
// a no-op, which keeps payment verification replays harmless.
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
