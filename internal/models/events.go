package models

import "time"

// Event types
const (
	EventTypeOrderPlaced = "ORDER_PLACED"
	EventTypeOrderVoided = "ORDER_VOIDED"
	EventTypeStockLow    = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after a checkout commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	TotalCents    int64           `json:"total_cents"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderLineData `json:"items"`
}

// OrderVoidedEvent published when a manager voids an order
type OrderVoidedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// StockLowEvent published when a checkout leaves an ingredient at or
// below the alert threshold
type StockLowEvent struct {
	BaseEvent
	InventoryID int64  `json:"inventory_id"`
	Name        string `json:"name"`
	Remaining   int    `json:"remaining"`
}

// OrderLineData represents line item data in events
type OrderLineData struct {
	MenuItemID     int64 `json:"menu_item_id"`
	Quantity       int   `json:"quantity"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}
