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

// NextOrderNumber allocates the next human-facing order number from a
// database sequence: strictly increasing across concurrent creates,
// gap-tolerant, never reused after deletion.
func (db *DB) NextOrderNumber(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	var n int64
	if err := tx.GetContext(ctx, &n, `SELECT nextval('order_numbers_seq')`); err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}
	return n, nil
}

// InsertOrder persists a new order and fills in its generated id and
// timestamps.
func (db *DB) InsertOrder(ctx context.Context, tx *sqlx.Tx, o *models.Order) error {
	query := `INSERT INTO orders (order_number, customer_id, status, total_amount, note)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	err := tx.QueryRowxContext(ctx, query, o.OrderNumber, o.CustomerID, o.Status, o.TotalAmount, o.Note).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// InsertOrderItems persists an order's line items and fills in their
// generated ids.
func (db *DB) InsertOrderItems(ctx context.Context, tx *sqlx.Tx, orderID int64, items []models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4) RETURNING id`
	for i := range items {
		items[i].OrderID = orderID
		err := tx.QueryRowxContext(ctx, query, orderID, items[i].ProductID, items[i].Quantity, items[i].Price).
			Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item for product %d: %w", items[i].ProductID, err)
		}
	}
	return nil
}

// GetOrderForUpdate loads an order row under FOR UPDATE so concurrent
// transitions on the same order serialize on the row lock.
func (db *DB) GetOrderForUpdate(ctx context.Context, tx *sqlx.Tx, orderID int64) (models.Order, error) {
	var o models.Order
	query := `SELECT id, order_number, customer_id, status, total_amount, note, created_at, updated_at
		FROM orders WHERE id=$1 FOR UPDATE`
	err := tx.GetContext(ctx, &o, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return o, contracts.OrderNotFound(orderID)
	}
	if err != nil {
		return o, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	return o, nil
}

// GetOrderByID loads an order with its items outside any transaction.
func (db *DB) GetOrderByID(ctx context.Context, orderID int64) (models.Order, error) {
	var o models.Order
	query := `SELECT id, order_number, customer_id, status, total_amount, note, created_at, updated_at
		FROM orders WHERE id=$1`
	err := db.SQL.GetContext(ctx, &o, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return o, contracts.OrderNotFound(orderID)
	}
	if err != nil {
		return o, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	items, err := db.GetOrderItems(ctx, db.SQL, orderID)
	if err != nil {
		return o, err
	}
	o.Items = items
	return o, nil
}

// GetOrderItems loads an order's line items; q may be the pool or an
// open transaction.
func (db *DB) GetOrderItems(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, 4)
	query := `SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id=$1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, q, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to load items for order %d: %w", orderID, err)
	}
	return items, nil
}

// UpdateOrderStatus moves an order to a new status and bumps updated_at.
func (db *DB) UpdateOrderStatus(ctx context.Context, tx *sqlx.Tx, orderID int64, status models.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update status of order %d: %w", orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for order %d: %w", orderID, err)
	}
	if rowsAffected == 0 {
		return contracts.OrderNotFound(orderID)
	}
	return nil
}

// DeleteOrderAggregate removes an order and its items as one routine
// inside the caller's transaction, children first.
func (db *DB) DeleteOrderAggregate(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to delete items of order %d: %w", orderID, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for order %d: %w", orderID, err)
	}
	if rowsAffected == 0 {
		return contracts.OrderNotFound(orderID)
	}
	return nil
}

// ListOrders returns orders newest first, optionally filtered by
// customer, with items attached.
func (db *DB) ListOrders(ctx context.Context, customerID *int64) ([]models.Order, error) {
	orders := make([]models.Order, 0, 16)
	var err error
	if customerID != nil {
		query := `SELECT id, order_number, customer_id, status, total_amount, note, created_at, updated_at
			FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`
		err = db.SQL.SelectContext(ctx, &orders, query, *customerID)
	} else {
		query := `SELECT id, order_number, customer_id, status, total_amount, note, created_at, updated_at
			FROM orders ORDER BY created_at DESC`
		err = db.SQL.SelectContext(ctx, &orders, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = make([]models.OrderItem, 0, 4)
	}
	query, args, err := sqlx.In(`SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build order items query: %w", err)
	}
	query = db.SQL.Rebind(query)

	var items []models.OrderItem
	if err := db.SQL.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders, nil
}
