package worker

import (
	"context"
	"log"

	"bobapos/internal/broker"
	"bobapos/internal/models"
	"bobapos/internal/util"

	"go.uber.org/zap"
)

// AlertStore persists low-stock alerts for the manager dashboard.
type AlertStore interface {
	InsertStockAlert(ctx context.Context, alert *models.StockAlert) error
}

// StockAlertWorker consumes StockLow events and records them as alerts.
type StockAlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker
func NewStockAlertWorker(consumer *broker.Consumer, store AlertStore) *StockAlertWorker {
	logger := util.GetLogger()

	eventHandler := broker.NewEventHandler()
	eventHandler.OnStockLow(func(ctx context.Context, event *models.StockLowEvent) error {
		alert := &models.StockAlert{
			InventoryID: event.InventoryID,
			Name:        event.Name,
			Remaining:   event.Remaining,
		}
		if err := store.InsertStockAlert(ctx, alert); err != nil {
			return err
		}

		util.StockAlertsTotal.Inc()
		logger.Warn("Low stock alert recorded",
			zap.Int64("inventory_id", event.InventoryID),
			zap.String("name", event.Name),
			zap.Int("remaining", event.Remaining))
		return nil
	})

	return &StockAlertWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	log.Println("Starting stock alert worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() {
	if err := w.consumer.Close(); err != nil {
		w.logger.Error("Failed to close consumer", zap.Error(err))
	}
}
