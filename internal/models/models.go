package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// --- Database Models ---

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// Product carries the stock ledger counters alongside catalog data.
// current_stock/total_in/total_out are mutated only through the ledger
// operations in the database package.
type Product struct {
	ID           int64           `db:"id" json:"id"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	Price        decimal.Decimal `db:"price" json:"price"`
	CurrentStock int             `db:"current_stock" json:"currentStock"`
	TotalIn      int             `db:"total_in" json:"totalIn"`
	TotalOut     int             `db:"total_out" json:"totalOut"`
}

// Customer is owned by an external collaborator; the order service only
// checks existence.
type Customer struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

type Order struct {
	ID          int64           `db:"id" json:"id"`
	OrderNumber int64           `db:"order_number" json:"orderNumber"`
	CustomerID  int64           `db:"customer_id" json:"customerId"`
	Status      OrderStatus     `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Note        *string         `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
	Items       []OrderItem     `db:"-" json:"items"`
}

// OrderItem freezes the unit price at creation time and is never
// mutated afterwards.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"orderId"`
	ProductID int64           `db:"product_id" json:"productId"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// PurchaseRecord is append-only, written exactly once per OrderItem at
// confirmation.
type PurchaseRecord struct {
	ID           int64           `db:"id" json:"id"`
	CustomerID   int64           `db:"customer_id" json:"customerId"`
	ProductID    int64           `db:"product_id" json:"productId"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	TotalAmount  decimal.Decimal `db:"total_amount" json:"totalAmount"`
	PurchaseDate time.Time       `db:"purchase_date" json:"purchaseDate"`
}

// --- Outgoing Events ---

// OrderEventProduct represents a line item within a published order event.
type OrderEventProduct struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderEvent is published after every committed order lifecycle
// transition.
type OrderEvent struct {
	EventID     string              `json:"eventId"`
	OrderID     int64               `json:"orderId"`
	OrderNumber int64               `json:"orderNumber"`
	CustomerID  int64               `json:"customerId"`
	Status      string              `json:"status"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Products    []OrderEventProduct `json:"products"`
	Timestamp   time.Time           `json:"timestamp"`
}

// StockAdjustedEvent is published after a committed manual stock
// adjustment.
type StockAdjustedEvent struct {
	EventID      string    `json:"eventId"`
	ProductID    int64     `json:"productId"`
	CurrentStock int       `json:"currentStock"`
	TotalIn      int       `json:"totalIn"`
	TotalOut     int       `json:"totalOut"`
	Timestamp    time.Time `json:"timestamp"`
}
