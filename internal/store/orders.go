package store

import (
	"context"
	"database/sql"
	"fmt"

	"bobapos/internal/models"
)

// OrderByID retrieves an order by ID
func (s *Store) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderByIdempotencyKey retrieves an order by idempotency key, nil if none.
func (s *Store) OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderLines retrieves all line items for an order
func (s *Store) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return lines, err
}

// OrdersByCustomer retrieves a customer's orders, newest first.
func (s *Store) OrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// VoidOrder flips a completed order to VOIDED. Returns false when the order
// does not exist or was already voided.
func (s *Store) VoidOrder(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusVoided, orderID, models.OrderStatusCompleted)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SalesReport aggregates completed orders per day over the trailing window.
func (s *Store) SalesReport(ctx context.Context, days int) ([]models.SalesReportRow, error) {
	var rows []models.SalesReportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*) AS order_count,
		       COALESCE(SUM(total_cents), 0) AS total_cents
		FROM orders
		WHERE status = $1 AND created_at >= NOW() - ($2 * INTERVAL '1 day')
		GROUP BY 1
		ORDER BY 1 DESC`,
		models.OrderStatusCompleted, days)
	return rows, err
}

// InsertStockAlert records a low-stock alert for the dashboard.
func (s *Store) InsertStockAlert(ctx context.Context, alert *models.StockAlert) error {
	return s.db.GetContext(ctx, alert, `
		INSERT INTO stock_alerts (inventory_id, name, remaining)
		VALUES ($1, $2, $3)
		RETURNING id, inventory_id, name, remaining, acknowledged, created_at`,
		alert.InventoryID, alert.Name, alert.Remaining)
}

// StockAlerts retrieves unacknowledged alerts, newest first.
func (s *Store) StockAlerts(ctx context.Context) ([]models.StockAlert, error) {
	var alerts []models.StockAlert
	err := s.db.SelectContext(ctx, &alerts,
		"SELECT * FROM stock_alerts WHERE acknowledged = FALSE ORDER BY created_at DESC")
	return alerts, err
}

// AcknowledgeStockAlert marks an alert as handled.
func (s *Store) AcknowledgeStockAlert(ctx context.Context, alertID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE stock_alerts SET acknowledged = TRUE WHERE id = $1", alertID)
	return err
}
