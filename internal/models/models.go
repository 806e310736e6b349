package models

import (
	"time"

	"github.com/lib/pq"
)

// MenuItem represents a sellable drink or snack on the menu.
// Ingredients is the recipe: the inventory rows consumed per unit sold.
type MenuItem struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Category    string       `db:"category" json:"category"`
	PriceCents  int64        `db:"price_cents" json:"price_cents"`
	Available   bool         `db:"available" json:"available"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	Ingredients []RecipeLine `json:"ingredients"`
}

// RecipeLine maps a menu item to one inventory item it consumes.
type RecipeLine struct {
	MenuItemID      int64 `db:"menu_item_id" json:"-"`
	InventoryID     int64 `db:"inventory_id" json:"inventory_id"`
	QuantityPerUnit int   `db:"quantity_per_unit" json:"quantity_per_unit"`
}

// InventoryItem represents a stocked ingredient tracked by quantity and unit.
type InventoryItem struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Unit      string    `db:"unit" json:"unit"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Customer represents a loyalty member
type Customer struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`
	Points    int64  `db:"points" json:"points"`
}

// Order represents a completed checkout
type Order struct {
	ID             int64     `db:"id" json:"id"`
	CustomerID     *int64    `db:"customer_id" json:"customer_id,omitempty"`
	TotalCents     int64     `db:"total_cents" json:"total_cents"`
	PaymentMethod  string    `db:"payment_method" json:"payment_method"`
	Status         string    `db:"status" json:"status"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// OrderLine represents one line item of an order, including its customization.
// Toppings holds the inventory ids of add-ons consumed one per drink.
type OrderLine struct {
	ID             int64         `db:"id" json:"id"`
	OrderID        int64         `db:"order_id" json:"order_id"`
	MenuItemID     int64         `db:"menu_item_id" json:"menu_item_id"`
	Quantity       int           `db:"quantity" json:"quantity"`
	UnitPriceCents int64         `db:"unit_price_cents" json:"unit_price_cents"`
	PointsCost     int64         `db:"points_cost" json:"points_cost"`
	Temperature    string        `db:"temperature" json:"temperature,omitempty"`
	Ice            string        `db:"ice" json:"ice,omitempty"`
	Sugar          string        `db:"sugar" json:"sugar,omitempty"`
	Toppings       pq.Int64Array `db:"toppings" json:"toppings,omitempty"`
}

// StockAlert is recorded by the alert worker when an ingredient runs low.
type StockAlert struct {
	ID           int64     `db:"id" json:"id"`
	InventoryID  int64     `db:"inventory_id" json:"inventory_id"`
	Name         string    `db:"name" json:"name"`
	Remaining    int       `db:"remaining" json:"remaining"`
	Acknowledged bool      `db:"acknowledged" json:"acknowledged"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SalesReportRow is one day of aggregated sales.
type SalesReportRow struct {
	Day        time.Time `db:"day" json:"day"`
	OrderCount int       `db:"order_count" json:"order_count"`
	TotalCents int64     `db:"total_cents" json:"total_cents"`
}

// Payment methods
const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
)

// Order statuses
const (
	OrderStatusCompleted = "COMPLETED"
	OrderStatusVoided    = "VOIDED"
)

// CheckoutMutation is the write half of a checkout, applied atomically by the
// store: point redemption, order insert, point accrual, stock deduction and
// the availability refresh for every menu item sharing a touched ingredient.
// Deductions must be sorted by ascending inventory id so that concurrent
// checkouts acquire row locks in the same order.
type CheckoutMutation struct {
	Order        Order
	Lines        []OrderLine
	RedeemPoints int64
	AccruePoints int64
	Deductions   []StockDeduction

	// LowStockThreshold marks deductions that leave an ingredient at or
	// below this many units for alerting.
	LowStockThreshold int
}

// StockDeduction is one guarded decrement against an inventory row.
type StockDeduction struct {
	InventoryID int64
	Name        string
	Quantity    int
}

// CheckoutResult is returned by the store after a committed checkout.
type CheckoutResult struct {
	OrderID  int64
	LowStock []StockLevel
}

// StockLevel reports an ingredient's remaining quantity after deduction.
type StockLevel struct {
	InventoryID int64  `json:"inventory_id"`
	Name        string `json:"name"`
	Remaining   int    `json:"remaining"`
}
