package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/drluca/shopstream/orderservice/internal/models"
)

// Purchase records are append-only: written once per order item at
// confirmation, never updated or deleted.

func (db *DB) InsertPurchaseRecord(ctx context.Context, tx *sqlx.Tx, rec *models.PurchaseRecord) error {
	query := `INSERT INTO purchase_records (customer_id, product_id, quantity, price, total_amount, purchase_date)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := tx.QueryRowxContext(ctx, query, rec.CustomerID, rec.ProductID, rec.Quantity, rec.Price, rec.TotalAmount, rec.PurchaseDate).
		Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert purchase record for product %d: %w", rec.ProductID, err)
	}
	return nil
}

// ListPurchasesByCustomer returns a customer's purchase history, newest
// first.
func (db *DB) ListPurchasesByCustomer(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error) {
	records := make([]models.PurchaseRecord, 0, 16)
	query := `SELECT id, customer_id, product_id, quantity, price, total_amount, purchase_date
		FROM purchase_records WHERE customer_id=$1 ORDER BY purchase_date DESC`
	if err := db.SQL.SelectContext(ctx, &records, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to list purchases for customer %d: %w", customerID, err)
	}
	return records, nil
}
