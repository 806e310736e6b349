package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// InitSchema creates the tables if they don't exist, in foreign key order.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS inventory (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT 'unit',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS menu_items (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL DEFAULT 0,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS menu_item_ingredients (
			menu_item_id BIGINT NOT NULL REFERENCES menu_items(id) ON DELETE CASCADE,
			inventory_id BIGINT NOT NULL REFERENCES inventory(id),
			quantity_per_unit INTEGER NOT NULL CHECK (quantity_per_unit > 0),
			PRIMARY KEY (menu_item_id, inventory_id)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			customer_id BIGINT REFERENCES customers(id),
			total_cents BIGINT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT 'CASH',
			status TEXT NOT NULL DEFAULT 'COMPLETED',
			idempotency_key TEXT UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id),
			menu_item_id BIGINT NOT NULL REFERENCES menu_items(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price_cents BIGINT NOT NULL DEFAULT 0,
			points_cost BIGINT NOT NULL DEFAULT 0,
			temperature TEXT NOT NULL DEFAULT '',
			ice TEXT NOT NULL DEFAULT '',
			sugar TEXT NOT NULL DEFAULT '',
			toppings BIGINT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS stock_alerts (
			id BIGSERIAL PRIMARY KEY,
			inventory_id BIGINT NOT NULL REFERENCES inventory(id),
			name TEXT NOT NULL,
			remaining INTEGER NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
