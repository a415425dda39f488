package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/drluca/shopstream/orderservice/internal/contracts"
	"github.com/drluca/shopstream/orderservice/internal/models"
)

// Stock ledger. The three counter mutations below are the only writers
// of current_stock/total_in/total_out. Each takes the enclosing
// transaction so a ledger update can never commit apart from the order
// state change it supports. The guarded UPDATE takes the row lock and
// enforces current_stock >= 0 in one statement, so concurrent
// decrements against the same product serialize on the row and at most
// one can win the last units.

// GetProductByID fetches a product with its ledger counters.
func (db *DB) GetProductByID(ctx context.Context, productID int64) (models.Product, error) {
	var p models.Product
	query := `SELECT id, sku, name, price, current_stock, total_in, total_out FROM products WHERE id=$1`
	err := db.SQL.GetContext(ctx, &p, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, contracts.ProductNotFound(productID)
	}
	return p, err
}

// GetProductsByIDs batch-loads the products referenced by an order's
// items. Missing IDs are reported as ProductNotFound.
func (db *DB) GetProductsByIDs(ctx context.Context, tx *sqlx.Tx, ids []int64) (map[int64]models.Product, error) {
	query, args, err := sqlx.In(`SELECT id, sku, name, price, current_stock, total_in, total_out FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}
	query = tx.Rebind(query)

	var products []models.Product
	if err := tx.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, contracts.ProductNotFound(id)
		}
	}
	return byID, nil
}

// DecrementStock consumes stock: current_stock -= qty, total_out += qty.
// Fails with InsufficientStock when fewer than qty units remain; the
// caller must have verified the product exists.
func (db *DB) DecrementStock(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	query := `UPDATE products SET current_stock = current_stock - $1, total_out = total_out + $1 WHERE id = $2 AND current_stock >= $1`
	result, err := tx.ExecContext(ctx, query, qty, productID)
	if err != nil {
		return fmt.Errorf("error decrementing stock for product %d: %w", productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for product %d: %w", productID, err)
	}
	if rowsAffected == 0 {
		return contracts.InsufficientStock(productID)
	}
	return nil
}

// IncrementStock records a manual stock-in: current_stock += qty,
// total_in += qty.
func (db *DB) IncrementStock(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	query := `UPDATE products SET current_stock = current_stock + $1, total_in = total_in + $1 WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, qty, productID)
	if err != nil {
		return fmt.Errorf("error incrementing stock for product %d: %w", productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for product %d: %w", productID, err)
	}
	if rowsAffected == 0 {
		return contracts.ProductNotFound(productID)
	}
	return nil
}

// RestoreStock reverses a prior decrement: current_stock += qty,
// total_out -= qty. Used when a confirmed order is deleted.
func (db *DB) RestoreStock(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	query := `UPDATE products SET current_stock = current_stock + $1, total_out = total_out - $1 WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, qty, productID)
	if err != nil {
		return fmt.Errorf("error restoring stock for product %d: %w", productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for product %d: %w", productID, err)
	}
	if rowsAffected == 0 {
		return contracts.ProductNotFound(productID)
	}
	return nil
}

// GetProductTx re-reads a product inside the transaction, used to
// return updated counters after an adjustment.
func (db *DB) GetProductTx(ctx context.Context, tx *sqlx.Tx, productID int64) (models.Product, error) {
	var p models.Product
	query := `SELECT id, sku, name, price, current_stock, total_in, total_out FROM products WHERE id=$1`
	err := tx.GetContext(ctx, &p, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, contracts.ProductNotFound(productID)
	}
	return p, err
}
