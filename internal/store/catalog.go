package store

import (
	"context"
	"database/sql"
	"fmt"

	"bobapos/internal/models"

	"github.com/jmoiron/sqlx"
)

// MenuItems retrieves the full catalog with recipes attached.
func (s *Store) MenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := s.db.SelectContext(ctx, &items, "SELECT * FROM menu_items ORDER BY id")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	var lines []models.RecipeLine
	err = s.db.SelectContext(ctx, &lines,
		"SELECT menu_item_id, inventory_id, quantity_per_unit FROM menu_item_ingredients ORDER BY menu_item_id, inventory_id")
	if err != nil {
		return nil, err
	}

	byItem := make(map[int64][]models.RecipeLine)
	for _, l := range lines {
		byItem[l.MenuItemID] = append(byItem[l.MenuItemID], l)
	}
	for i := range items {
		items[i].Ingredients = byItem[items[i].ID]
	}
	return items, nil
}

// MenuItemsByNames retrieves menu items by exact name, recipes attached,
// keyed by name. Names absent from the catalog are simply absent from the map.
func (s *Store) MenuItemsByNames(ctx context.Context, names []string) (map[string]*models.MenuItem, error) {
	if len(names) == 0 {
		return map[string]*models.MenuItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM menu_items WHERE name IN (?)", names)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.MenuItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	byName := make(map[string]*models.MenuItem, len(items))
	ids := make([]int64, 0, len(items))
	for i := range items {
		byName[items[i].Name] = &items[i]
		ids = append(ids, items[i].ID)
	}

	if len(ids) > 0 {
		query, args, err := sqlx.In(
			"SELECT menu_item_id, inventory_id, quantity_per_unit FROM menu_item_ingredients WHERE menu_item_id IN (?)", ids)
		if err != nil {
			return nil, err
		}
		query = s.db.Rebind(query)

		var lines []models.RecipeLine
		if err := s.db.SelectContext(ctx, &lines, query, args...); err != nil {
			return nil, err
		}

		byID := make(map[int64]*models.MenuItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}
		for _, l := range lines {
			item := byID[l.MenuItemID]
			item.Ingredients = append(item.Ingredients, l)
		}
	}

	return byName, nil
}

// CreateMenuItem inserts a menu item with its recipe in one transaction.
func (s *Store) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, item, `
		INSERT INTO menu_items (name, category, price_cents, available)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, name, category, price_cents, available, created_at, updated_at`,
		item.Name, item.Category, item.PriceCents)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("menu item %q already exists", item.Name)
		}
		return fmt.Errorf("failed to insert menu item: %w", err)
	}

	for _, line := range item.Ingredients {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO menu_item_ingredients (menu_item_id, inventory_id, quantity_per_unit) VALUES ($1, $2, $3)",
			item.ID, line.InventoryID, line.QuantityPerUnit)
		if err != nil {
			return fmt.Errorf("failed to insert recipe line: %w", err)
		}
	}

	if len(item.Ingredients) > 0 {
		if err := refreshAvailabilityForItems(ctx, tx, []int64{item.ID}); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// InventoryItems retrieves all inventory rows
func (s *Store) InventoryItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.SelectContext(ctx, &items, "SELECT * FROM inventory ORDER BY id")
	return items, err
}

// InventoryByIDs retrieves inventory rows keyed by id. Missing ids are
// absent from the map; the caller decides whether that is an integrity fault.
func (s *Store) InventoryByIDs(ctx context.Context, ids []int64) (map[int64]*models.InventoryItem, error) {
	if len(ids) == 0 {
		return map[int64]*models.InventoryItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM inventory WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.InventoryItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.InventoryItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	return byID, nil
}

// Restock adds stock to an ingredient and refreshes the availability flag of
// every menu item whose recipe uses it.
func (s *Store) Restock(ctx context.Context, inventoryID int64, quantity int) (*models.InventoryItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var item models.InventoryItem
	err = tx.GetContext(ctx, &item, `
		UPDATE inventory SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, name, quantity, unit, updated_at`,
		quantity, inventoryID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory item not found: %d", inventoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restock: %w", err)
	}

	if err := refreshAvailability(ctx, tx, []int64{inventoryID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateInventoryItem inserts a new ingredient row.
func (s *Store) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	return s.db.GetContext(ctx, item, `
		INSERT INTO inventory (name, quantity, unit)
		VALUES ($1, $2, $3)
		RETURNING id, name, quantity, unit, updated_at`,
		item.Name, item.Quantity, item.Unit)
}

// refreshAvailability recomputes the availability flag of every menu item
// whose recipe references any of the given ingredients. A menu item is
// available only while all of its linked ingredients have stock above zero.
func refreshAvailability(ctx context.Context, tx *sqlx.Tx, inventoryIDs []int64) error {
	if len(inventoryIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`
		UPDATE menu_items m SET
			available = NOT EXISTS (
				SELECT 1 FROM menu_item_ingredients mi
				JOIN inventory i ON i.id = mi.inventory_id
				WHERE mi.menu_item_id = m.id AND i.quantity <= 0
			),
			updated_at = NOW()
		WHERE m.id IN (
			SELECT DISTINCT menu_item_id FROM menu_item_ingredients WHERE inventory_id IN (?)
		)`, inventoryIDs)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to refresh availability: %w", err)
	}
	return nil
}

// refreshAvailabilityForItems recomputes the flag for specific menu items.
func refreshAvailabilityForItems(ctx context.Context, tx *sqlx.Tx, menuItemIDs []int64) error {
	query, args, err := sqlx.In(`
		UPDATE menu_items m SET
			available = NOT EXISTS (
				SELECT 1 FROM menu_item_ingredients mi
				JOIN inventory i ON i.id = mi.inventory_id
				WHERE mi.menu_item_id = m.id AND i.quantity <= 0
			),
			updated_at = NOW()
		WHERE m.id IN (?)`, menuItemIDs)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to refresh availability: %w", err)
	}
	return nil
}
