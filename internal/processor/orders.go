package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/drluca/shopstream/orderservice/config"
	"github.com/drluca/shopstream/orderservice/internal/contracts"
	"github.com/drluca/shopstream/orderservice/internal/database"
	"github.com/drluca/shopstream/orderservice/internal/models"
)

// Publisher is the slice of the eventbus the processor needs.
type Publisher interface {
	PublishMessage(ctx context.Context, routingKey string, payload interface{}) error
}

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// StockAdjustment carries a manual stock change; exactly one of the two
// fields must be set.
type StockAdjustment struct {
	Increase *int `json:"increase,omitempty"`
	Decrease *int `json:"decrease,omitempty"`
}

// Processor drives the order lifecycle state machine. Every transition
// runs as one transaction: order rows, purchase records and stock
// ledger counters change together or not at all.
type Processor struct {
	db  *database.DB
	bus Publisher
	cfg config.Config
}

func New(db *database.DB, bus Publisher, cfg config.Config) *Processor {
	return &Processor{db: db, bus: bus, cfg: cfg}
}

// CreateOrder validates the customer and products, freezes unit prices
// into the order items and persists the order as pending. Stock is only
// checked for sufficiency here, never consumed; consumption happens at
// confirmation.
func (p *Processor) CreateOrder(ctx context.Context, customerID int64, items []ItemRequest, note *string) (models.Order, error) {
	var order models.Order

	if len(items) == 0 {
		return order, contracts.EmptyItems()
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return order, contracts.Validation("item quantity must be positive")
		}
		ids = append(ids, item.ProductID)
	}

	exists, err := p.db.CustomerExists(ctx, customerID)
	if err != nil {
		log.Error().Err(err).Int64("customerId", customerID).Msg("Failed to check customer")
		return order, contracts.Internal(err)
	}
	if !exists {
		return order, contracts.CustomerNotFound(customerID)
	}

	err = p.db.InTx(ctx, func(tx *sqlx.Tx) error {
		products, err := p.db.GetProductsByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}

		orderItems := make([]models.OrderItem, 0, len(items))
		total := decimal.Zero
		for _, item := range items {
			product := products[item.ProductID]
			if product.CurrentStock < item.Quantity {
				return contracts.InsufficientStock(item.ProductID)
			}
			orderItems = append(orderItems, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		orderNumber, err := p.db.NextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		order = models.Order{
			OrderNumber: orderNumber,
			CustomerID:  customerID,
			Status:      models.OrderPending,
			TotalAmount: total,
			Note:        note,
		}
		if err := p.db.InsertOrder(ctx, tx, &order); err != nil {
			return err
		}
		if err := p.db.InsertOrderItems(ctx, tx, order.ID, orderItems); err != nil {
			return err
		}
		order.Items = orderItems
		return nil
	})
	if err != nil {
		return models.Order{}, p.storeError(err, "CreateOrder")
	}

	log.Info().Int64("orderId", order.ID).Int64("orderNumber", order.OrderNumber).Msg("Order created")
	p.publishOrderEvent(ctx, p.cfg.OrderCreatedTopic, order)
	return order, nil
}

// ConfirmOrder moves a pending order to confirmed: in one transaction
// it writes a purchase record per item and decrements stock per item.
// The first failing decrement aborts everything and the order stays
// pending. This is the only point stock is consumed.
func (p *Processor) ConfirmOrder(ctx context.Context, orderID int64) (models.Order, error) {
	var order models.Order
	err := p.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = p.db.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderPending {
			return contracts.InvalidState(string(order.Status))
		}

		items, err := p.db.GetOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := p.db.UpdateOrderStatus(ctx, tx, orderID, models.OrderConfirmed); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, item := range items {
			rec := models.PurchaseRecord{
				CustomerID:   order.CustomerID,
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				Price:        item.Price,
				TotalAmount:  item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
				PurchaseDate: now,
			}
			if err := p.db.InsertPurchaseRecord(ctx, tx, &rec); err != nil {
				return err
			}
			if err := p.db.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		order.Status = models.OrderConfirmed
		order.UpdatedAt = now
		order.Items = items
		return nil
	})
	if err != nil {
		return models.Order{}, p.storeError(err, "ConfirmOrder")
	}

	log.Info().Int64("orderId", order.ID).Msg("Order confirmed")
	p.publishOrderEvent(ctx, p.cfg.OrderConfirmedTopic, order)
	return order, nil
}

// CancelOrder moves a pending order to cancelled. Stock was never
// consumed at creation, so nothing is restored.
func (p *Processor) CancelOrder(ctx context.Context, orderID int64) (models.Order, error) {
	var order models.Order
	err := p.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = p.db.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderPending {
			return contracts.InvalidState(string(order.Status))
		}
		if err := p.db.UpdateOrderStatus(ctx, tx, orderID, models.OrderCancelled); err != nil {
			return err
		}

		items, err := p.db.GetOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order.Status = models.OrderCancelled
		order.Items = items
		return nil
	})
	if err != nil {
		return models.Order{}, p.storeError(err, "CancelOrder")
	}

	log.Info().Int64("orderId", order.ID).Msg("Order cancelled")
	p.publishOrderEvent(ctx, p.cfg.OrderCancelledTopic, order)
	return order, nil
}

// DeleteOrder removes an order and its items in one transaction. Stock
// is restored only when the order was confirmed, since only a confirmed
// order ever decremented the ledger; deleting a pending or cancelled
// order leaves the counters untouched.
func (p *Processor) DeleteOrder(ctx context.Context, orderID int64) error {
	var order models.Order
	err := p.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = p.db.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		items, err := p.db.GetOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderConfirmed {
			for _, item := range items {
				if err := p.db.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}
		order.Items = items
		return p.db.DeleteOrderAggregate(ctx, tx, orderID)
	})
	if err != nil {
		return p.storeError(err, "DeleteOrder")
	}

	log.Info().Int64("orderId", orderID).Msg("Order deleted")
	p.publishOrderEvent(ctx, p.cfg.OrderDeletedTopic, order)
	return nil
}

// GetOrder returns a single order with its items.
func (p *Processor) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	order, err := p.db.GetOrderByID(ctx, orderID)
	if err != nil {
		return order, p.storeError(err, "GetOrder")
	}
	return order, nil
}

// ListOrders returns orders newest first, optionally for one customer.
func (p *Processor) ListOrders(ctx context.Context, customerID *int64) ([]models.Order, error) {
	orders, err := p.db.ListOrders(ctx, customerID)
	if err != nil {
		return nil, p.storeError(err, "ListOrders")
	}
	return orders, nil
}

// ListCustomerPurchases returns a customer's purchase history.
func (p *Processor) ListCustomerPurchases(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error) {
	records, err := p.db.ListPurchasesByCustomer(ctx, customerID)
	if err != nil {
		return nil, p.storeError(err, "ListCustomerPurchases")
	}
	return records, nil
}

// AdjustStock applies a manual stock change through the ledger and
// returns the product with its updated counters.
func (p *Processor) AdjustStock(ctx context.Context, productID int64, adj StockAdjustment) (models.Product, error) {
	var product models.Product

	if adj.Increase == nil && adj.Decrease == nil {
		return product, contracts.NoAmountGiven()
	}
	if adj.Increase != nil && adj.Decrease != nil {
		return product, contracts.Validation("specify either increase or decrease, not both")
	}
	amount := 0
	if adj.Increase != nil {
		amount = *adj.Increase
	} else {
		amount = *adj.Decrease
	}
	if amount <= 0 {
		return product, contracts.Validation("adjustment amount must be positive")
	}

	err := p.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if adj.Increase != nil {
			if err := p.db.IncrementStock(ctx, tx, productID, amount); err != nil {
				return err
			}
		} else {
			// Existence first, so a missing product is not reported as
			// insufficient stock.
			if _, err := p.db.GetProductTx(ctx, tx, productID); err != nil {
				return err
			}
			if err := p.db.DecrementStock(ctx, tx, productID, amount); err != nil {
				return err
			}
		}
		var err error
		product, err = p.db.GetProductTx(ctx, tx, productID)
		return err
	})
	if err != nil {
		return models.Product{}, p.storeError(err, "AdjustStock")
	}

	log.Info().Int64("productId", productID).Int("currentStock", product.CurrentStock).Msg("Stock adjusted")
	p.publishStockEvent(ctx, product)
	return product, nil
}

// storeError passes tagged errors through and wraps raw store failures
// as opaque internal errors, logging the details.
func (p *Processor) storeError(err error, op string) error {
	if contracts.KindOf(err) != contracts.KindInternal {
		return err
	}
	log.Error().Err(err).Str("operation", op).Msg("Transaction failed")
	return contracts.Internal(err)
}

// publishOrderEvent is post-commit and best-effort: a publish failure
// is logged but never undoes the committed transition.
func (p *Processor) publishOrderEvent(ctx context.Context, routingKey string, order models.Order) {
	if p.bus == nil || p.cfg.EventPublishDisabled {
		return
	}
	products := make([]models.OrderEventProduct, 0, len(order.Items))
	for _, item := range order.Items {
		products = append(products, models.OrderEventProduct{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	event := models.OrderEvent{
		EventID:     uuid.New().String(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Products:    products,
		Timestamp:   time.Now(),
	}
	if err := p.bus.PublishMessage(ctx, routingKey, event); err != nil {
		log.Error().Err(err).Str("routingKey", routingKey).Int64("orderId", order.ID).Msg("Failed to publish order event")
	}
}

func (p *Processor) publishStockEvent(ctx context.Context, product models.Product) {
	if p.bus == nil || p.cfg.EventPublishDisabled {
		return
	}
	event := models.StockAdjustedEvent{
		EventID:      uuid.New().String(),
		ProductID:    product.ID,
		CurrentStock: product.CurrentStock,
		TotalIn:      product.TotalIn,
		TotalOut:     product.TotalOut,
		Timestamp:    time.Now(),
	}
	if err := p.bus.PublishMessage(ctx, p.cfg.StockAdjustedTopic, event); err != nil {
		log.Error().Err(err).Int64("productId", product.ID).Msg("Failed to publish stock event")
	}
}
