package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"bobapos/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events. Order lifecycle events go
// to the order topic, stock events to the inventory topic.
type EventPublisher struct {
	orders    *Producer
	inventory *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, inventory *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, inventory: inventory}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishOrderVoided publishes OrderVoided event
func (ep *EventPublisher) PublishOrderVoided(ctx context.Context, event *models.OrderVoidedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishStockLow publishes StockLow event
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	key := fmt.Sprintf("inventory-%d", event.InventoryID)
	return ep.inventory.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onStockLow func(context.Context, *models.StockLowEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnStockLow registers a handler for StockLow events
func (eh *EventHandler) OnStockLow(handler func(context.Context, *models.StockLowEvent) error) {
	eh.onStockLow = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeStockLow:
		if eh.onStockLow != nil {
			var event models.StockLowEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockLow event: %w", err)
			}
			return eh.onStockLow(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
