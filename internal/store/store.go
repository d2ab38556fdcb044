package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkout-core/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection, used by tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetInventory retrieves inventory for a product
func (s *Store) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	var inv models.Inventory
	err := s.db.GetContext(ctx, &inv, "SELECT * FROM inventory WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ReserveStock atomically moves stock from available to reserved. The
// condition in the WHERE clause makes the check and the decrement a single
// statement, so concurrent reservations on the same product never oversell.
func (s *Store) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inventory
		 SET available = available - $1, reserved = reserved + $1, updated_at = NOW()
		 WHERE product_id = $2 AND available >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrInsufficientStock
	}
	return nil
}

// ReleaseStock returns reserved stock to available. Exempt from the
// insufficient-stock check: releasing is always allowed.
func (s *Store) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inventory
		 SET available = available + $1, reserved = reserved - $1, updated_at = NOW()
		 WHERE product_id = $2`,
		quantity, productID)
	return err
}

// CommitStock burns reserved stock once an order is delivered
func (s *Store) CommitStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inventory
		 SET reserved = reserved - $1, updated_at = NOW()
		 WHERE product_id = $2`,
		quantity, productID)
	return err
}

// ListInventory retrieves the whole ledger, used to prime the Redis cache
func (s *Store) ListInventory(ctx context.Context) ([]models.Inventory, error) {
	var invs []models.Inventory
	err := s.db.SelectContext(ctx, &invs, "SELECT * FROM inventory ORDER BY product_id")
	return invs, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
