package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"bobapos/config"
	"bobapos/internal/models"
	"bobapos/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store is the storage seam the checkout service runs against. The real
// implementation is backed by Postgres; tests use an in-memory fake.
type Store interface {
	MenuItemsByNames(ctx context.Context, names []string) (map[string]*models.MenuItem, error)
	InventoryByIDs(ctx context.Context, ids []int64) (map[int64]*models.InventoryItem, error)
	CustomerPoints(ctx context.Context, id int64) (int64, bool, error)
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	VoidOrder(ctx context.Context, orderID int64) (bool, error)
	ApplyCheckout(ctx context.Context, m *models.CheckoutMutation) (*models.CheckoutResult, error)
}

// EventPublisher is the post-commit event sink.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderVoided(ctx context.Context, event *models.OrderVoidedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// MenuCache invalidation keeps the cached catalog consistent with
// availability flags mutated by checkouts.
type MenuCache interface {
	GetMenu(ctx context.Context) ([]models.MenuItem, error)
	SetMenu(ctx context.Context, items []models.MenuItem) error
	InvalidateMenu(ctx context.Context) error
}

// CheckoutService handles order placement and voiding
type CheckoutService struct {
	store     Store
	publisher EventPublisher
	cache     MenuCache
	business  config.BusinessConfig
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store Store, publisher EventPublisher, cache MenuCache, business config.BusinessConfig) *CheckoutService {
	return &CheckoutService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		business:  business,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest represents a checkout submission from the kiosk or POS.
type PlaceOrderRequest struct {
	Items          []CartItemRequest `json:"items" binding:"dive"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// CartItemRequest is one line of the cart. Price is client-supplied and
// charged as-is; PointsCost marks a reward redemption priced in points.
type CartItemRequest struct {
	Name       string         `json:"name" binding:"required"`
	Price      float64        `json:"price"`
	Quantity   int            `json:"quantity" binding:"required,min=1"`
	PointsCost int64          `json:"points_cost,omitempty"`
	Custom     *Customization `json:"custom,omitempty"`
}

// Customization holds the per-drink options. Toppings are inventory ids,
// each consumed once per drink on top of the base recipe.
type Customization struct {
	Temperature string  `json:"temperature,omitempty"`
	Ice         string  `json:"ice,omitempty"`
	Sugar       string  `json:"sugar,omitempty"`
	Toppings    []int64 `json:"toppings,omitempty"`
}

// PlaceOrderResponse is returned after a committed checkout.
type PlaceOrderResponse struct {
	OrderID      int64   `json:"order_id"`
	TotalAmount  float64 `json:"total_amount"`
	PointsEarned int64   `json:"points_earned"`
	Status       string  `json:"status"`
}

// PlaceOrder validates the cart, then atomically persists the order, applies
// point economics, deducts inventory and refreshes availability flags.
// All validation rejections happen before the transaction opens; guards
// inside the transaction re-verify points and stock against concurrent
// checkouts.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if len(req.Items) == 0 {
		return nil, s.reject(models.ErrEmptyCart())
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else {
		existing, err := s.store.OrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return s.replayResponse(ctx, existing)
		}
	}

	// Reward affordability check.
	var totalPointsCost int64
	for _, item := range req.Items {
		totalPointsCost += item.PointsCost * int64(item.Quantity)
	}
	if totalPointsCost > 0 {
		if req.CustomerID == nil {
			return nil, s.reject(models.ErrMissingCustomer())
		}
		points, found, err := s.store.CustomerPoints(ctx, *req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to read customer points: %w", err)
		}
		if !found || points < totalPointsCost {
			return nil, s.reject(models.ErrInsufficientPoints(points, totalPointsCost))
		}
	}

	// Resolve every line item by exact name and accumulate the inventory
	// draw: recipe quantities scaled by line quantity, plus one unit of
	// each selected topping per drink.
	menuItems, err := s.store.MenuItemsByNames(ctx, itemNames(req.Items))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve menu items: %w", err)
	}

	required := make(map[int64]int)
	var totalCents int64
	lines := make([]models.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		menuItem, ok := menuItems[item.Name]
		if !ok {
			return nil, s.reject(models.ErrMenuItemNotFound(item.Name))
		}

		for _, rl := range menuItem.Ingredients {
			required[rl.InventoryID] += rl.QuantityPerUnit * item.Quantity
		}

		line := models.OrderLine{
			MenuItemID:     menuItem.ID,
			Quantity:       item.Quantity,
			UnitPriceCents: dollarsToCents(item.Price),
			PointsCost:     item.PointsCost,
		}
		if item.Custom != nil {
			line.Temperature = item.Custom.Temperature
			line.Ice = item.Custom.Ice
			line.Sugar = item.Custom.Sugar
			line.Toppings = pq.Int64Array(item.Custom.Toppings)
			for _, toppingID := range item.Custom.Toppings {
				required[toppingID] += item.Quantity
			}
		}

		totalCents += line.UnitPriceCents * int64(item.Quantity)
		lines = append(lines, line)
	}

	inventory, err := s.store.InventoryByIDs(ctx, inventoryIDs(required))
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	// Deterministic deduction order keeps row locks acquired consistently
	// across concurrent checkouts.
	deductions := make([]models.StockDeduction, 0, len(required))
	for _, id := range inventoryIDs(required) {
		inv, ok := inventory[id]
		if !ok {
			s.logger.Error("Menu recipe references missing inventory row",
				zap.Int64("inventory_id", id))
			return nil, s.reject(models.ErrInventoryRecordMissing(id))
		}
		if inv.Quantity < required[id] {
			return nil, s.reject(models.ErrOutOfStock(inv.Name, inv.Quantity, required[id]))
		}
		deductions = append(deductions, models.StockDeduction{
			InventoryID: id,
			Name:        inv.Name,
			Quantity:    required[id],
		})
	}

	var accrue int64
	if req.CustomerID != nil {
		accrue = totalCents * s.business.PointsEarnRate / 100
	}

	mutation := &models.CheckoutMutation{
		Order: models.Order{
			CustomerID:     req.CustomerID,
			TotalCents:     totalCents,
			PaymentMethod:  normalizePaymentMethod(req.PaymentMethod),
			Status:         models.OrderStatusCompleted,
			IdempotencyKey: req.IdempotencyKey,
		},
		Lines:             lines,
		RedeemPoints:      totalPointsCost,
		AccruePoints:      accrue,
		Deductions:        deductions,
		LowStockThreshold: s.business.LowStockThreshold,
	}

	result, err := s.store.ApplyCheckout(ctx, mutation)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateOrder) {
			// Lost the idempotency race to a concurrent submission.
			existing, lookupErr := s.store.OrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				return s.replayResponse(ctx, existing)
			}
		}
		var checkoutErr *models.CheckoutError
		if errors.As(err, &checkoutErr) {
			return nil, s.reject(checkoutErr)
		}
		util.OrdersRejectedTotal.WithLabelValues(string(models.ErrKindTransactionFailure)).Inc()
		s.logger.Error("Checkout transaction failed", zap.Error(err))
		return nil, models.ErrTransactionFailure(err)
	}

	util.OrdersPlacedTotal.Inc()
	util.StockDeductionsTotal.Add(float64(len(deductions)))
	if totalPointsCost > 0 {
		util.PointsRedeemedTotal.Add(float64(totalPointsCost))
	}
	if accrue > 0 {
		util.PointsEarnedTotal.Add(float64(accrue))
	}
	s.logger.Info("Order placed",
		zap.Int64("order_id", result.OrderID),
		zap.Int64("total_cents", totalCents),
		zap.Int("lines", len(lines)))

	s.afterCheckout(ctx, result, mutation)

	return &PlaceOrderResponse{
		OrderID:      result.OrderID,
		TotalAmount:  centsToDollars(totalCents),
		PointsEarned: accrue,
		Status:       models.OrderStatusCompleted,
	}, nil
}

// afterCheckout runs the post-commit side effects: cache invalidation and
// event publication. Failures here are logged, never surfaced — the order
// is already committed.
func (s *CheckoutService) afterCheckout(ctx context.Context, result *models.CheckoutResult, m *models.CheckoutMutation) {
	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("Failed to invalidate menu cache", zap.Error(err))
	}

	items := make([]models.OrderLineData, 0, len(m.Lines))
	for _, line := range m.Lines {
		items = append(items, models.OrderLineData{
			MenuItemID:     line.MenuItemID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	placed := &models.OrderPlacedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:       result.OrderID,
		CustomerID:    m.Order.CustomerID,
		TotalCents:    m.Order.TotalCents,
		PaymentMethod: m.Order.PaymentMethod,
		Items:         items,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, placed); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	for _, low := range result.LowStock {
		event := &models.StockLowEvent{
			BaseEvent:   newBaseEvent(models.EventTypeStockLow),
			InventoryID: low.InventoryID,
			Name:        low.Name,
			Remaining:   low.Remaining,
		}
		if err := s.publisher.PublishStockLow(ctx, event); err != nil {
			s.logger.Error("Failed to publish StockLow event",
				zap.Int64("inventory_id", low.InventoryID),
				zap.Error(err))
		}
	}
}

// replayResponse rebuilds the success response for a duplicate submission.
func (s *CheckoutService) replayResponse(ctx context.Context, order *models.Order) (*PlaceOrderResponse, error) {
	var earned int64
	if order.CustomerID != nil {
		earned = order.TotalCents * s.business.PointsEarnRate / 100
	}
	return &PlaceOrderResponse{
		OrderID:      order.ID,
		TotalAmount:  centsToDollars(order.TotalCents),
		PointsEarned: earned,
		Status:       order.Status,
	}, nil
}

func (s *CheckoutService) reject(err *models.CheckoutError) error {
	util.OrdersRejectedTotal.WithLabelValues(string(err.Kind)).Inc()
	if err.UserError() {
		s.logger.Info("Checkout rejected", zap.String("kind", string(err.Kind)), zap.String("reason", err.Message))
	} else {
		s.logger.Error("Checkout failed", zap.String("kind", string(err.Kind)), zap.String("reason", err.Message))
	}
	return err
}

// GetOrder retrieves an order with its line items
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderLine, error) {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	lines, err := s.store.OrderLines(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, lines, nil
}

// VoidOrder flips a completed order to VOIDED and publishes the event.
// Inventory and points are not restored; voiding is a bookkeeping action.
func (s *CheckoutService) VoidOrder(ctx context.Context, orderID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.VoidOrder")
	defer span.End()

	ok, err := s.store.VoidOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to void order: %w", err)
	}
	if !ok {
		return fmt.Errorf("order %d not found or already voided", orderID)
	}

	util.OrdersVoidedTotal.Inc()
	s.logger.Info("Order voided", zap.Int64("order_id", orderID), zap.String("reason", reason))

	event := &models.OrderVoidedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderVoided),
		OrderID:   orderID,
		Reason:    reason,
	}
	if err := s.publisher.PublishOrderVoided(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderVoided event", zap.Error(err))
	}
	return nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func itemNames(items []CartItemRequest) []string {
	seen := make(map[string]bool, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.Name] {
			seen[item.Name] = true
			names = append(names, item.Name)
		}
	}
	return names
}

func inventoryIDs(required map[int64]int) []int64 {
	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func normalizePaymentMethod(method string) string {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case models.PaymentMethodCard:
		return models.PaymentMethodCard
	default:
		return models.PaymentMethodCash
	}
}

func dollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
