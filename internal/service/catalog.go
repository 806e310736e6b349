package service

import (
	"context"
	"fmt"

	"bobapos/internal/models"
	"bobapos/internal/util"

	"go.uber.org/zap"
)

// CatalogStore covers the menu, inventory and reporting reads and the
// manager-side writes.
type CatalogStore interface {
	MenuItems(ctx context.Context) ([]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	InventoryItems(ctx context.Context) ([]models.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error
	Restock(ctx context.Context, inventoryID int64, quantity int) (*models.InventoryItem, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	StockAlerts(ctx context.Context) ([]models.StockAlert, error)
	AcknowledgeStockAlert(ctx context.Context, alertID int64) error
	SalesReport(ctx context.Context, days int) ([]models.SalesReportRow, error)
}

// CatalogService serves the menu (cache-first) and the manager operations:
// menu management, restocking, alerts and sales reporting.
type CatalogService struct {
	store  CatalogStore
	cache  MenuCache
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, cache MenuCache) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CreateMenuItemRequest accepts either a typed recipe or the legacy
// "{invId:qty,...}" encoding from older catalog exports.
type CreateMenuItemRequest struct {
	Name          string              `json:"name" binding:"required"`
	Category      string              `json:"category"`
	Price         float64             `json:"price" binding:"min=0"`
	Ingredients   []models.RecipeLine `json:"ingredients,omitempty"`
	InventoryLink string              `json:"inventory_link,omitempty"`
}

// Menu returns the catalog, serving from cache when possible.
func (s *CatalogService) Menu(ctx context.Context) ([]models.MenuItem, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Menu")
	defer span.End()

	cached, err := s.cache.GetMenu(ctx)
	if err != nil {
		s.logger.Warn("Menu cache read failed", zap.Error(err))
	}
	if cached != nil {
		util.MenuCacheHits.Inc()
		return cached, nil
	}
	util.MenuCacheMisses.Inc()

	items, err := s.store.MenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}

	if err := s.cache.SetMenu(ctx, items); err != nil {
		s.logger.Warn("Menu cache write failed", zap.Error(err))
	}
	return items, nil
}

// CreateMenuItem adds a menu item with its recipe and invalidates the cache.
func (s *CatalogService) CreateMenuItem(ctx context.Context, req *CreateMenuItemRequest) (*models.MenuItem, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateMenuItem")
	defer span.End()

	ingredients := req.Ingredients
	if len(ingredients) == 0 && req.InventoryLink != "" {
		parsed, err := models.ParseRecipeLink(req.InventoryLink)
		if err != nil {
			return nil, fmt.Errorf("invalid inventory link: %w", err)
		}
		ingredients = parsed
	}

	item := &models.MenuItem{
		Name:        req.Name,
		Category:    req.Category,
		PriceCents:  dollarsToCents(req.Price),
		Ingredients: ingredients,
	}
	if err := s.store.CreateMenuItem(ctx, item); err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("Failed to invalidate menu cache", zap.Error(err))
	}

	s.logger.Info("Menu item created", zap.Int64("menu_item_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// Inventory returns all ingredient rows.
func (s *CatalogService) Inventory(ctx context.Context) ([]models.InventoryItem, error) {
	return s.store.InventoryItems(ctx)
}

// CreateInventoryItem adds a new ingredient.
func (s *CatalogService) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	if item.Unit == "" {
		item.Unit = "unit"
	}
	return s.store.CreateInventoryItem(ctx, item)
}

// Restock adds stock to an ingredient, refreshing availability of every menu
// item that uses it, and invalidates the menu cache.
func (s *CatalogService) Restock(ctx context.Context, inventoryID int64, quantity int) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Restock")
	defer span.End()

	if quantity <= 0 {
		return nil, fmt.Errorf("restock quantity must be positive")
	}

	item, err := s.store.Restock(ctx, inventoryID, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("Failed to invalidate menu cache", zap.Error(err))
	}

	s.logger.Info("Ingredient restocked",
		zap.Int64("inventory_id", inventoryID),
		zap.Int("added", quantity),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// Customer returns a loyalty member with their point balance.
func (s *CatalogService) Customer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

// StockAlerts returns unacknowledged low-stock alerts.
func (s *CatalogService) StockAlerts(ctx context.Context) ([]models.StockAlert, error) {
	return s.store.StockAlerts(ctx)
}

// AcknowledgeStockAlert marks an alert as handled.
func (s *CatalogService) AcknowledgeStockAlert(ctx context.Context, alertID int64) error {
	return s.store.AcknowledgeStockAlert(ctx, alertID)
}

// SalesReport aggregates completed orders per day over the trailing window.
func (s *CatalogService) SalesReport(ctx context.Context, days int) ([]models.SalesReportRow, error) {
	if days <= 0 {
		days = 7
	}
	return s.store.SalesReport(ctx, days)
}
