package store

import (
	"context"
	"database/sql"
	"fmt"

	"bobapos/internal/models"

	"github.com/lib/pq"
)

// ApplyCheckout executes the mutation phase of a checkout in a single
// transaction: guarded point redemption, order insert, point accrual, guarded
// stock deduction per ingredient, and the availability refresh for every menu
// item sharing a touched ingredient. Any failure rolls back the whole order.
//
// Guard failures surface as *models.CheckoutError so a concurrent checkout
// that won the race produces the same rejection as a stale cart would.
func (s *Store) ApplyCheckout(ctx context.Context, m *models.CheckoutMutation) (*models.CheckoutResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout: %w", err)
	}
	defer tx.Rollback()

	if m.RedeemPoints > 0 {
		res, err := tx.ExecContext(ctx,
			"UPDATE customers SET points = points - $1 WHERE id = $2 AND points >= $1",
			m.RedeemPoints, *m.Order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem points: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			var available int64
			if err := tx.GetContext(ctx, &available,
				"SELECT points FROM customers WHERE id = $1", *m.Order.CustomerID); err != nil {
				return nil, fmt.Errorf("failed to read points after guard: %w", err)
			}
			return nil, models.ErrInsufficientPoints(available, m.RedeemPoints)
		}
	}

	order := m.Order
	err = tx.GetContext(ctx, &order, `
		INSERT INTO orders (customer_id, total_cents, payment_method, status, idempotency_key)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, customer_id, total_cents, payment_method, status,
		          COALESCE(idempotency_key, '') AS idempotency_key, created_at, updated_at`,
		order.CustomerID, order.TotalCents, order.PaymentMethod, order.Status, order.IdempotencyKey)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateOrder
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range m.Lines {
		line := &m.Lines[i]
		line.OrderID = order.ID
		toppings := line.Toppings
		if toppings == nil {
			toppings = pq.Int64Array{}
		}
		err := tx.GetContext(ctx, &line.ID, `
			INSERT INTO order_items
				(order_id, menu_item_id, quantity, unit_price_cents, points_cost, temperature, ice, sugar, toppings)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			line.OrderID, line.MenuItemID, line.Quantity, line.UnitPriceCents,
			line.PointsCost, line.Temperature, line.Ice, line.Sugar, toppings)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	if m.AccruePoints > 0 && order.CustomerID != nil {
		_, err := tx.ExecContext(ctx,
			"UPDATE customers SET points = points + $1 WHERE id = $2",
			m.AccruePoints, *order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to accrue points: %w", err)
		}
	}

	result := &models.CheckoutResult{OrderID: order.ID}
	touched := make([]int64, 0, len(m.Deductions))
	for _, d := range m.Deductions {
		var remaining int
		err := tx.GetContext(ctx, &remaining, `
			UPDATE inventory SET quantity = quantity - $1, updated_at = NOW()
			WHERE id = $2 AND quantity >= $1
			RETURNING quantity`,
			d.Quantity, d.InventoryID)
		if err == sql.ErrNoRows {
			// Guard failed: another checkout drained this row between our
			// validation read and this statement.
			var available int
			if err := tx.GetContext(ctx, &available,
				"SELECT quantity FROM inventory WHERE id = $1", d.InventoryID); err != nil {
				return nil, models.ErrInventoryRecordMissing(d.InventoryID)
			}
			return nil, models.ErrOutOfStock(d.Name, available, d.Quantity)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to deduct stock for %s: %w", d.Name, err)
		}

		touched = append(touched, d.InventoryID)
		if remaining <= m.LowStockThreshold {
			result.LowStock = append(result.LowStock, models.StockLevel{
				InventoryID: d.InventoryID,
				Name:        d.Name,
				Remaining:   remaining,
			})
		}
	}

	if err := refreshAvailability(ctx, tx, touched); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}
	return result, nil
}
