package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order placement transaction commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	OrderNo         string          `json:"order_no"`
	CustomerID      int64           `json:"customer_id"`
	AppliedDiscount int             `json:"applied_discount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Lines           []OrderLineData `json:"lines"`
}

// OrderConfirmedEvent published when a manager confirms an order
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	OrderNo    string `json:"order_no"`
	CustomerID int64  `json:"customer_id"`
}

// OrderLineData represents line data carried in events
type OrderLineData struct {
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
}
