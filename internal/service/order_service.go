package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"freshmarket/internal/models"
	"freshmarket/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderTx is the transactional unit of work for order placement. All reads
// and writes made through the handle become visible together on Commit or
// not at all. GetProductForUpdate must hold an exclusive row lock until the
// transaction ends.
type OrderTx interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderLine(ctx context.Context, line *models.OrderLine) error
	UpdateProductStock(ctx context.Context, productID int64, stock int) error
	Commit() error
	Rollback() error
}

// OrderStore is the persistence surface the order service depends on
type OrderStore interface {
	BeginOrderTx(ctx context.Context) (OrderTx, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// OrderEventPublisher publishes order lifecycle events after commit
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
}

// OrderService handles order placement and confirmation
type OrderService struct {
	store      OrderStore
	publisher  OrderEventPublisher
	orderNoGen *OrderNumberGenerator
	txTimeout  time.Duration
	logger     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	publisher OrderEventPublisher,
	orderNoGen *OrderNumberGenerator,
	txTimeout time.Duration,
) *OrderService {
	return &OrderService{
		store:      store,
		publisher:  publisher,
		orderNoGen: orderNoGen,
		txTimeout:  txTimeout,
		logger:     util.GetLogger(),
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	CustomerID int64              `json:"customer_id" binding:"required"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1"`
}

// OrderItemRequest represents one requested line
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// OrderDetail is a committed order together with its lines
type OrderDetail struct {
	Order models.Order       `json:"order"`
	Lines []models.OrderLine `json:"lines"`
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	CustomerID int64
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
}

// PlaceOrder validates the basket, reserves stock and persists the order in
// one transaction. The body runs in two phases: first every product is locked
// and its stock checked, then and only then are lines written and stock
// decremented, so an unsatisfiable basket fails with zero side effects.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validatePlaceOrderRequest(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	// The whole placement is bounded; on expiry the deferred rollback
	// discards everything.
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.store.BeginOrderTx(ctx)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("internal").Inc()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	detail, err := s.placeOrderTx(ctx, tx, req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("internal").Inc()
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", detail.Order.ID),
		zap.String("order_no", detail.Order.OrderNo),
		zap.Int64("customer_id", detail.Order.CustomerID),
		zap.String("total_amount", detail.Order.TotalAmount.String()))

	s.publishOrderPlaced(ctx, detail)

	return detail, nil
}

// placeOrderTx runs the placement body against an open transaction handle
func (s *OrderService) placeOrderTx(ctx context.Context, tx OrderTx, req *PlaceOrderRequest) (*OrderDetail, error) {
	customer, err := tx.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer == nil {
		return nil, &NotFoundError{Entity: "customer", ID: req.CustomerID}
	}
	// Clamp to 0-100 in case directory data predates the schema check.
	discount := customer.DiscountPercentage
	if discount < 0 {
		discount = 0
	} else if discount > 100 {
		discount = 100
	}

	// Phase one: lock every product in ascending id order and check that
	// stock covers the accumulated requested quantity. Nothing is mutated
	// until every line has passed.
	requested := make(map[int64]int, len(req.Items))
	lockOrder := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if _, seen := requested[item.ProductID]; !seen {
			lockOrder = append(lockOrder, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i] < lockOrder[j] })

	products := make(map[int64]*models.Product, len(lockOrder))
	for _, productID := range lockOrder {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
		if product == nil {
			return nil, &NotFoundError{Entity: "product", ID: productID}
		}
		if product.Stock < requested[productID] {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: requested[productID],
			}
		}
		products[productID] = product
	}

	newOrder := &models.Order{
		OrderNo:         s.orderNoGen.Next(req.CustomerID),
		CustomerID:      req.CustomerID,
		Status:          models.OrderStatusPending,
		AppliedDiscount: discount,
	}

	// Phase two: snapshot prices under the locks held since phase one,
	// write the lines and decrement stock.
	subtotal := decimal.Zero
	lines := make([]models.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		product := products[item.ProductID]
		lines = append(lines, models.OrderLine{
			ProductID:     product.ID,
			Quantity:      item.Quantity,
			PriceSnapshot: product.RetailPrice,
		})
		subtotal = subtotal.Add(product.RetailPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	newOrder.TotalAmount = applyDiscount(subtotal, discount)

	if err := tx.InsertOrder(ctx, newOrder); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range lines {
		lines[i].OrderID = newOrder.ID
		if err := tx.InsertOrderLine(ctx, &lines[i]); err != nil {
			return nil, fmt.Errorf("failed to create order line: %w", err)
		}
	}

	for _, productID := range lockOrder {
		product := products[productID]
		product.Stock -= requested[productID]
		if err := tx.UpdateProductStock(ctx, product.ID, product.Stock); err != nil {
			return nil, fmt.Errorf("failed to update stock for product %d: %w", product.ID, err)
		}
		util.StockDecrementedTotal.Add(float64(requested[productID]))
	}

	return &OrderDetail{Order: *newOrder, Lines: lines}, nil
}

// applyDiscount computes the final payable amount from an undiscounted
// subtotal and a whole-percent discount, rounded to 2 decimal places.
func applyDiscount(subtotal decimal.Decimal, discountPercentage int) decimal.Decimal {
	multiplier := decimal.NewFromInt(int64(100 - discountPercentage)).
		Div(decimal.NewFromInt(100))
	return subtotal.Mul(multiplier).Round(2)
}

func validatePlaceOrderRequest(req *PlaceOrderRequest) error {
	if req.CustomerID <= 0 {
		return &InvalidRequestError{Reason: "customer_id is required"}
	}
	if len(req.Items) == 0 {
		return &InvalidRequestError{Reason: "order must contain at least one item"}
	}
	for _, item := range req.Items {
		if item.ProductID <= 0 {
			return &InvalidRequestError{Reason: "product_id is required for every item"}
		}
		if item.Quantity <= 0 {
			return &InvalidRequestError{Reason: fmt.Sprintf("quantity must be positive for product %d", item.ProductID)}
		}
	}
	return nil
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, detail *OrderDetail) {
	if s.publisher == nil {
		return
	}

	lineData := make([]models.OrderLineData, 0, len(detail.Lines))
	for _, line := range detail.Lines {
		lineData = append(lineData, models.OrderLineData{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			PriceSnapshot: line.PriceSnapshot,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:         detail.Order.ID,
		OrderNo:         detail.Order.OrderNo,
		CustomerID:      detail.Order.CustomerID,
		AppliedDiscount: detail.Order.AppliedDiscount,
		TotalAmount:     detail.Order.TotalAmount,
		Lines:           lineData,
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", detail.Order.ID),
			zap.Error(err))
	}
}

// ConfirmOrder moves an order from pending to confirmed. Confirming twice is
// a no-op state assignment; concurrent double-confirmation is not guarded
// since the transition is monotonic and touches no stock.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConfirmOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusConfirmed); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	order.Status = models.OrderStatusConfirmed

	util.OrdersConfirmedTotal.Inc()
	s.logger.Info("Order confirmed",
		zap.Int64("order_id", order.ID),
		zap.String("order_no", order.OrderNo))

	if s.publisher != nil {
		event := &models.OrderConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderConfirmed,
				Timestamp: time.Now(),
			},
			OrderID:    order.ID,
			OrderNo:    order.OrderNo,
			CustomerID: order.CustomerID,
		}
		if err := s.publisher.PublishOrderConfirmed(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderConfirmed event",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}

	return order, nil
}

// GetOrder retrieves an order and its lines
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}

	lines, err := s.store.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}

	return &OrderDetail{Order: *order, Lines: lines}, nil
}

// ListOrders retrieves orders matching the filter, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, filter)
}

// GetCustomer resolves a customer from the user directory, mainly so callers
// can show the discount a placement would snapshot.
func (s *OrderService) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer == nil {
		return nil, &NotFoundError{Entity: "customer", ID: customerID}
	}
	return customer, nil
}

func failureReason(err error) string {
	switch err.(type) {
	case *NotFoundError:
		return "not_found"
	case *InvalidRequestError:
		return "invalid_request"
	case *InsufficientStockError:
		return "insufficient_stock"
	default:
		return "internal"
	}
}
