package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"freshmarket/internal/models"
	"freshmarket/internal/service"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
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

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// OrderTx is the order placement unit of work. Every read and write goes
// through one database transaction; product rows read via
// GetProductForUpdate stay exclusively locked until Commit or Rollback.
type OrderTx struct {
	tx *sqlx.Tx
}

// BeginOrderTx opens a placement transaction
func (s *Store) BeginOrderTx(ctx context.Context) (service.OrderTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &OrderTx{tx: tx}, nil
}

// GetCustomer loads a customer inside the transaction. Returns nil when absent.
func (t *OrderTx) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := t.tx.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetProductForUpdate loads a product under an exclusive row lock.
// Returns nil when absent.
func (t *OrderTx) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// InsertOrder writes the order row and fills in its generated columns
func (t *OrderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_no, customer_id, status, applied_discount, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return t.tx.GetContext(ctx, order, query,
		order.OrderNo, order.CustomerID, order.Status, order.AppliedDiscount, order.TotalAmount)
}

// InsertOrderLine writes one order line
func (t *OrderTx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, product_id, quantity, price_snapshot)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return t.tx.GetContext(ctx, &line.ID, query,
		line.OrderID, line.ProductID, line.Quantity, line.PriceSnapshot)
}

// UpdateProductStock persists a new stock level for a locked product
func (t *OrderTx) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
		stock, productID)
	return err
}

// Commit commits the unit of work
func (t *OrderTx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the unit of work. Safe to call after Commit.
func (t *OrderTx) Rollback() error {
	return t.tx.Rollback()
}

// GetCustomerByID retrieves a customer outside any transaction
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// InsertProduct creates a new product
func (s *Store) InsertProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, purchase_price, purchase_quantity, stock, description, retail_price, status, image_url, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, product, query,
		product.Name, product.PurchasePrice, product.PurchaseQuantity, product.Stock,
		product.Description, product.RetailPrice, product.Status, product.ImageURL, product.CreatorID)
}

// GetProductByID retrieves a product by ID. Returns nil when absent.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves products, optionally filtered by status
func (s *Store) ListProducts(ctx context.Context, status string) ([]models.Product, error) {
	var products []models.Product
	if status != "" {
		err := s.db.SelectContext(ctx, &products,
			"SELECT * FROM products WHERE status = $1 ORDER BY id", status)
		return products, err
	}
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// UpdateProductReview updates the seller-controlled fields of a product.
// Stock is intentionally not settable here.
func (s *Store) UpdateProductReview(ctx context.Context, id int64, retailPrice *decimal.Decimal, status *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products SET
			retail_price = COALESCE($1, retail_price),
			status = COALESCE($2, status),
			updated_at = NOW()
		WHERE id = $3`,
		retailPrice, status, id)
	return err
}

// DeleteProduct removes a product row
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	return err
}
