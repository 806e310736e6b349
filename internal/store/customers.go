package store

import (
	"context"
	"database/sql"
	"fmt"

	"bobapos/internal/models"
)

// GetCustomer retrieves a customer by ID
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerPoints returns a customer's current point balance. The second
// return value is false when the customer does not exist.
func (s *Store) CustomerPoints(ctx context.Context, id int64) (int64, bool, error) {
	var points int64
	err := s.db.GetContext(ctx, &points, "SELECT points FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return points, true, nil
}

// CreateCustomer inserts a new loyalty member.
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	err := s.db.GetContext(ctx, customer, `
		INSERT INTO customers (username, first_name, last_name, phone, points)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, first_name, last_name, phone, points`,
		customer.Username, customer.FirstName, customer.LastName, customer.Phone, customer.Points)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("username %q already taken", customer.Username)
	}
	return err
}
