package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a buying customer from the user directory.
// The order service only ever reads customers; discounts are managed elsewhere.
type Customer struct {
	ID                 int64     `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Phone              string    `db:"phone" json:"phone,omitempty"`
	Address            string    `db:"address" json:"address,omitempty"`
	DiscountPercentage int       `db:"discount_percentage" json:"discount_percentage"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Product represents an item in the produce catalog
type Product struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	PurchasePrice    decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	PurchaseQuantity int             `db:"purchase_quantity" json:"purchase_quantity"`
	Stock            int             `db:"stock" json:"stock"`
	Description      string          `db:"description" json:"description,omitempty"`
	RetailPrice      decimal.Decimal `db:"retail_price" json:"retail_price"`
	Status           string          `db:"status" json:"status"`
	ImageURL         string          `db:"image_url" json:"image_url,omitempty"`
	CreatorID        int64           `db:"creator_id" json:"creator_id"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order. Once committed it is immutable
// apart from the status transition to confirmed.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNo         string          `db:"order_no" json:"order_no"`
	CustomerID      int64           `db:"customer_id" json:"customer_id"`
	Status          string          `db:"status" json:"status"`
	AppliedDiscount int             `db:"applied_discount" json:"applied_discount"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderLine represents one line of an order. PriceSnapshot records the
// retail price at the moment of purchase and never changes afterwards.
type OrderLine struct {
	ID            int64           `db:"id" json:"id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	ProductID     int64           `db:"product_id" json:"product_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	PriceSnapshot decimal.Decimal `db:"price_snapshot" json:"price_snapshot"`
}

// Product statuses. Status gates whether a product shows up as orderable;
// order placement itself only checks stock, not status.
const (
	ProductStatusPending  = "pending"
	ProductStatusActive   = "active"
	ProductStatusOffShelf = "off_shelf"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
)

// StatsSummary holds the dashboard headline numbers
type StatsSummary struct {
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalOrders   int             `json:"total_orders"`
	PendingOrders int             `json:"pending_orders"`
	TotalProducts int             `json:"total_products"`
	SalesChange   float64         `json:"sales_change"`
	OrdersChange  float64         `json:"orders_change"`
	PendingChange float64         `json:"pending_change"`
}

// DailySales is one point of the sales trend chart
type DailySales struct {
	Date  string          `json:"date"`
	Sales decimal.Decimal `json:"sales"`
}
