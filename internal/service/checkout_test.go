package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobapos/config"
	"bobapos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store. ApplyCheckout mutates copies and commits
// them only on success, mirroring the transactional store.
type fakeStore struct {
	menu        map[string]*models.MenuItem
	inventory   map[int64]*models.InventoryItem
	customers   map[int64]*models.Customer
	orders      map[int64]*models.Order
	lines       map[int64][]models.OrderLine
	nextOrderID int64

	failCheckout error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		menu:      map[string]*models.MenuItem{},
		inventory: map[int64]*models.InventoryItem{},
		customers: map[int64]*models.Customer{},
		orders:    map[int64]*models.Order{},
		lines:     map[int64][]models.OrderLine{},
	}
}

func (f *fakeStore) MenuItemsByNames(_ context.Context, names []string) (map[string]*models.MenuItem, error) {
	out := map[string]*models.MenuItem{}
	for _, name := range names {
		if item, ok := f.menu[name]; ok {
			out[name] = item
		}
	}
	return out, nil
}

func (f *fakeStore) InventoryByIDs(_ context.Context, ids []int64) (map[int64]*models.InventoryItem, error) {
	out := map[int64]*models.InventoryItem{}
	for _, id := range ids {
		if item, ok := f.inventory[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *fakeStore) CustomerPoints(_ context.Context, id int64) (int64, bool, error) {
	c, ok := f.customers[id]
	if !ok {
		return 0, false, nil
	}
	return c.Points, true, nil
}

func (f *fakeStore) OrderByID(_ context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	return order, nil
}

func (f *fakeStore) OrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.IdempotencyKey == key {
			return order, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) OrderLines(_ context.Context, orderID int64) ([]models.OrderLine, error) {
	return f.lines[orderID], nil
}

func (f *fakeStore) VoidOrder(_ context.Context, orderID int64) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok || order.Status != models.OrderStatusCompleted {
		return false, nil
	}
	order.Status = models.OrderStatusVoided
	return true, nil
}

func (f *fakeStore) ApplyCheckout(_ context.Context, m *models.CheckoutMutation) (*models.CheckoutResult, error) {
	if f.failCheckout != nil {
		return nil, f.failCheckout
	}

	if m.Order.IdempotencyKey != "" {
		for _, o := range f.orders {
			if o.IdempotencyKey == m.Order.IdempotencyKey {
				return nil, models.ErrDuplicateOrder
			}
		}
	}

	inventory := map[int64]*models.InventoryItem{}
	for id, item := range f.inventory {
		c := *item
		inventory[id] = &c
	}
	customers := map[int64]*models.Customer{}
	for id, c := range f.customers {
		cp := *c
		customers[id] = &cp
	}
	menu := map[string]*models.MenuItem{}
	for name, item := range f.menu {
		c := *item
		menu[name] = &c
	}

	if m.RedeemPoints > 0 {
		c := customers[*m.Order.CustomerID]
		if c == nil {
			return nil, models.ErrInsufficientPoints(0, m.RedeemPoints)
		}
		if c.Points < m.RedeemPoints {
			return nil, models.ErrInsufficientPoints(c.Points, m.RedeemPoints)
		}
		c.Points -= m.RedeemPoints
	}

	order := m.Order
	order.ID = f.nextOrderID + 1
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	lines := make([]models.OrderLine, len(m.Lines))
	copy(lines, m.Lines)
	for i := range lines {
		lines[i].ID = int64(i + 1)
		lines[i].OrderID = order.ID
	}

	if m.AccruePoints > 0 && order.CustomerID != nil {
		customers[*order.CustomerID].Points += m.AccruePoints
	}

	result := &models.CheckoutResult{OrderID: order.ID}
	touched := map[int64]bool{}
	for _, d := range m.Deductions {
		row, ok := inventory[d.InventoryID]
		if !ok {
			return nil, models.ErrInventoryRecordMissing(d.InventoryID)
		}
		if row.Quantity < d.Quantity {
			return nil, models.ErrOutOfStock(d.Name, row.Quantity, d.Quantity)
		}
		row.Quantity -= d.Quantity
		touched[d.InventoryID] = true
		if row.Quantity <= m.LowStockThreshold {
			result.LowStock = append(result.LowStock, models.StockLevel{
				InventoryID: d.InventoryID,
				Name:        d.Name,
				Remaining:   row.Quantity,
			})
		}
	}

	for _, item := range menu {
		uses := false
		for _, rl := range item.Ingredients {
			if touched[rl.InventoryID] {
				uses = true
				break
			}
		}
		if !uses {
			continue
		}
		available := true
		for _, rl := range item.Ingredients {
			row, ok := inventory[rl.InventoryID]
			if !ok || row.Quantity <= 0 {
				available = false
				break
			}
		}
		item.Available = available
	}

	f.inventory = inventory
	f.customers = customers
	f.menu = menu
	f.nextOrderID = order.ID
	f.orders[order.ID] = &order
	f.lines[order.ID] = lines
	return result, nil
}

type fakePublisher struct {
	placed   []*models.OrderPlacedEvent
	voided   []*models.OrderVoidedEvent
	stockLow []*models.StockLowEvent
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.placed = append(p.placed, e)
	return nil
}

func (p *fakePublisher) PublishOrderVoided(_ context.Context, e *models.OrderVoidedEvent) error {
	p.voided = append(p.voided, e)
	return nil
}

func (p *fakePublisher) PublishStockLow(_ context.Context, e *models.StockLowEvent) error {
	p.stockLow = append(p.stockLow, e)
	return nil
}

type fakeCache struct {
	menu          []models.MenuItem
	invalidations int
}

func (c *fakeCache) GetMenu(_ context.Context) ([]models.MenuItem, error) { return c.menu, nil }

func (c *fakeCache) SetMenu(_ context.Context, items []models.MenuItem) error {
	c.menu = items
	return nil
}

func (c *fakeCache) InvalidateMenu(_ context.Context) error {
	c.menu = nil
	c.invalidations++
	return nil
}

func newTestCheckout(store *fakeStore) (*CheckoutService, *fakePublisher, *fakeCache) {
	publisher := &fakePublisher{}
	cache := &fakeCache{}
	business := config.BusinessConfig{PointsEarnRate: 10, LowStockThreshold: 3}
	return NewCheckoutService(store, publisher, cache, business), publisher, cache
}

func seedMilkTeaShop(store *fakeStore) {
	store.inventory[1] = &models.InventoryItem{ID: 1, Name: "black tea", Quantity: 100, Unit: "g"}
	store.inventory[2] = &models.InventoryItem{ID: 2, Name: "milk", Quantity: 100, Unit: "ml"}
	store.inventory[3] = &models.InventoryItem{ID: 3, Name: "tapioca pearls", Quantity: 100, Unit: "g"}
	store.inventory[23] = &models.InventoryItem{ID: 23, Name: "grass jelly", Quantity: 50, Unit: "g"}

	store.menu["Classic Milk Tea"] = &models.MenuItem{
		ID: 1, Name: "Classic Milk Tea", Category: "milk tea", PriceCents: 400, Available: true,
		Ingredients: []models.RecipeLine{
			{MenuItemID: 1, InventoryID: 1, QuantityPerUnit: 2},
			{MenuItemID: 1, InventoryID: 2, QuantityPerUnit: 1},
		},
	}
	store.menu["Taro Milk Tea"] = &models.MenuItem{
		ID: 2, Name: "Taro Milk Tea", Category: "milk tea", PriceCents: 450, Available: true,
		Ingredients: []models.RecipeLine{
			{MenuItemID: 2, InventoryID: 2, QuantityPerUnit: 1},
			{MenuItemID: 2, InventoryID: 3, QuantityPerUnit: 1},
		},
	}
	store.menu["Matcha Latte"] = &models.MenuItem{
		ID: 3, Name: "Matcha Latte", Category: "latte", PriceCents: 450, Available: true,
		Ingredients: []models.RecipeLine{
			{MenuItemID: 3, InventoryID: 2, QuantityPerUnit: 2},
		},
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, publisher, cache := newTestCheckout(store)

	resp, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{Name: "Classic Milk Tea", Price: 4.00, Quantity: 2},
		},
		PaymentMethod: "Cash",
	})
	require.NoError(t, err)

	assert.Equal(t, 8.00, resp.TotalAmount)
	assert.Equal(t, models.OrderStatusCompleted, resp.Status)
	assert.Zero(t, resp.PointsEarned)

	// Recipe: 2g tea + 1ml milk per drink, two drinks.
	assert.Equal(t, 96, store.inventory[1].Quantity)
	assert.Equal(t, 98, store.inventory[2].Quantity)

	order := store.orders[resp.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, models.PaymentMethodCash, order.PaymentMethod)
	assert.Nil(t, order.CustomerID)
	assert.Equal(t, int64(800), order.TotalCents)

	lines := store.lines[resp.OrderID]
	require.Len(t, lines, 1)
	assert.Equal(t, int64(1), lines[0].MenuItemID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, int64(400), lines[0].UnitPriceCents)

	require.Len(t, publisher.placed, 1)
	assert.Equal(t, resp.OrderID, publisher.placed[0].OrderID)
	assert.Equal(t, 1, cache.invalidations)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, _, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{})
	requireCheckoutKind(t, err, models.ErrKindEmptyCart)
}

func TestPlaceOrderMissingCustomerForRewards(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, _, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{Name: "Taro Milk Tea", Price: 0, Quantity: 1, PointsCost: 200},
		},
	})
	requireCheckoutKind(t, err, models.ErrKindMissingCustomer)
}

func TestPlaceOrderInsufficientPoints(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.customers[7] = &models.Customer{ID: 7, Username: "mei", Points: 150}
	svc, publisher, _ := newTestCheckout(store)

	customerID := int64(7)
	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{Name: "Taro Milk Tea", Price: 0, Quantity: 1, PointsCost: 200},
		},
		CustomerID: &customerID,
	})
	requireCheckoutKind(t, err, models.ErrKindInsufficientPoints)
	assert.Contains(t, err.Error(), "available=150")

	// No mutation of any kind.
	assert.Equal(t, int64(150), store.customers[7].Points)
	assert.Equal(t, 100, store.inventory[2].Quantity)
	assert.Empty(t, store.orders)
	assert.Empty(t, publisher.placed)
}

func TestPlaceOrderMenuItemNotFound(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, _, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{Name: "Nonexistent Item", Price: 1, Quantity: 1},
		},
	})
	requireCheckoutKind(t, err, models.ErrKindMenuItemNotFound)
	assert.Contains(t, err.Error(), "Nonexistent Item")
}

func TestPlaceOrderOutOfStock(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.inventory[3].Quantity = 10
	svc, publisher, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{Name: "Taro Milk Tea", Price: 5.00, Quantity: 50},
		},
	})
	requireCheckoutKind(t, err, models.ErrKindOutOfStock)
	assert.Contains(t, err.Error(), "tapioca pearls")
	assert.Contains(t, err.Error(), "available=10")
	assert.Contains(t, err.Error(), "required=50")

	assert.Equal(t, 10, store.inventory[3].Quantity)
	assert.Equal(t, 100, store.inventory[2].Quantity)
	assert.Empty(t, store.orders)
	assert.Empty(t, publisher.placed)
}

func TestPlaceOrderInventoryRecordMissing(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.menu["Phantom Tea"] = &models.MenuItem{
		ID: 9, Name: "Phantom Tea", PriceCents: 300, Available: true,
		Ingredients: []models.RecipeLine{{MenuItemID: 9, InventoryID: 999, QuantityPerUnit: 1}},
	}
	svc, _, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{{Name: "Phantom Tea", Price: 3.00, Quantity: 1}},
	})
	requireCheckoutKind(t, err, models.ErrKindInventoryRecordMissing)

	var checkoutErr *models.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.False(t, checkoutErr.UserError())
}

func TestPlaceOrderCustomizationAndAccrual(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.customers[3] = &models.Customer{ID: 3, Username: "jun", Points: 0}
	svc, _, _ := newTestCheckout(store)

	customerID := int64(3)
	resp, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{
				Name: "Matcha Latte", Price: 4.50, Quantity: 1,
				Custom: &Customization{
					Temperature: "hot", Ice: "low", Sugar: "medium",
					Toppings: []int64{23},
				},
			},
		},
		CustomerID: &customerID,
	})
	require.NoError(t, err)

	assert.Equal(t, 4.50, resp.TotalAmount)
	assert.Equal(t, int64(45), resp.PointsEarned)
	assert.Equal(t, int64(45), store.customers[3].Points)

	// Topping consumed one per drink on top of the base recipe.
	assert.Equal(t, 49, store.inventory[23].Quantity)
	assert.Equal(t, 98, store.inventory[2].Quantity)

	lines := store.lines[resp.OrderID]
	require.Len(t, lines, 1)
	assert.Equal(t, "hot", lines[0].Temperature)
	assert.Equal(t, "low", lines[0].Ice)
	assert.Equal(t, "medium", lines[0].Sugar)
	require.Len(t, lines[0].Toppings, 1)
	assert.Equal(t, int64(23), lines[0].Toppings[0])
}

func TestPlaceOrderRewardRedemption(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.customers[5] = &models.Customer{ID: 5, Username: "ana", Points: 500}
	svc, _, _ := newTestCheckout(store)

	customerID := int64(5)
	resp, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{
			{Name: "Taro Milk Tea", Price: 0, Quantity: 1, PointsCost: 200},
		},
		CustomerID: &customerID,
	})
	require.NoError(t, err)

	// A zero-total reward order earns nothing and costs its point price.
	assert.Equal(t, 0.0, resp.TotalAmount)
	assert.Zero(t, resp.PointsEarned)
	assert.Equal(t, int64(300), store.customers[5].Points)

	// Reward drinks still consume ingredients.
	assert.Equal(t, 99, store.inventory[2].Quantity)
	assert.Equal(t, 99, store.inventory[3].Quantity)
}

func TestPlaceOrderPaymentMethodNormalization(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, _, _ := newTestCheckout(store)

	resp, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items:         []CartItemRequest{{Name: "Classic Milk Tea", Price: 4.00, Quantity: 1}},
		PaymentMethod: "bitcoin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, store.orders[resp.OrderID].PaymentMethod)

	resp, err = svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items:         []CartItemRequest{{Name: "Classic Milk Tea", Price: 4.00, Quantity: 1}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, store.orders[resp.OrderID].PaymentMethod)
}

func TestPlaceOrderAvailabilityFlip(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	// Exactly enough pearls for one drink; milk stays plentiful.
	store.inventory[3].Quantity = 1
	svc, _, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{{Name: "Taro Milk Tea", Price: 4.50, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.inventory[3].Quantity)
	assert.False(t, store.menu["Taro Milk Tea"].Available)
	assert.True(t, store.menu["Classic Milk Tea"].Available)
}

func TestPlaceOrderAvailabilityFlipSharedIngredient(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	// Milk is shared by all three drinks. Draining it must flip every item
	// that uses it, not just the one sold.
	store.inventory[2].Quantity = 1
	svc, _, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{{Name: "Taro Milk Tea", Price: 4.50, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.inventory[2].Quantity)
	assert.False(t, store.menu["Taro Milk Tea"].Available)
	assert.False(t, store.menu["Classic Milk Tea"].Available)
	assert.False(t, store.menu["Matcha Latte"].Available)
}

func TestPlaceOrderIdempotentReplay(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, publisher, _ := newTestCheckout(store)

	req := &PlaceOrderRequest{
		Items:          []CartItemRequest{{Name: "Classic Milk Tea", Price: 4.00, Quantity: 1}},
		IdempotencyKey: "kiosk-42-receipt-7",
	}

	first, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Len(t, store.orders, 1)
	// Stock deducted exactly once.
	assert.Equal(t, 98, store.inventory[1].Quantity)
	assert.Len(t, publisher.placed, 1)
}

func TestPlaceOrderTransactionFailure(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.failCheckout = errors.New("connection reset")
	svc, publisher, _ := newTestCheckout(store)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{{Name: "Classic Milk Tea", Price: 4.00, Quantity: 1}},
	})
	requireCheckoutKind(t, err, models.ErrKindTransactionFailure)

	var checkoutErr *models.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.False(t, checkoutErr.UserError())
	assert.Empty(t, store.orders)
	assert.Empty(t, publisher.placed)
}

func TestPlaceOrderLowStockEvent(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	store.inventory[1].Quantity = 4
	svc, publisher, _ := newTestCheckout(store)

	// Two drinks use 4g of tea, leaving 0 — at or below the threshold of 3.
	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{{Name: "Classic Milk Tea", Price: 4.00, Quantity: 2}},
	})
	require.NoError(t, err)

	require.Len(t, publisher.stockLow, 1)
	assert.Equal(t, int64(1), publisher.stockLow[0].InventoryID)
	assert.Equal(t, "black tea", publisher.stockLow[0].Name)
	assert.Equal(t, 0, publisher.stockLow[0].Remaining)
}

func TestVoidOrder(t *testing.T) {
	store := newFakeStore()
	seedMilkTeaShop(store)
	svc, publisher, _ := newTestCheckout(store)

	resp, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		Items: []CartItemRequest{{Name: "Classic Milk Tea", Price: 4.00, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.VoidOrder(context.Background(), resp.OrderID, "customer walked out"))
	assert.Equal(t, models.OrderStatusVoided, store.orders[resp.OrderID].Status)
	require.Len(t, publisher.voided, 1)
	assert.Equal(t, "customer walked out", publisher.voided[0].Reason)

	// Already voided.
	assert.Error(t, svc.VoidOrder(context.Background(), resp.OrderID, "again"))
}

func TestNormalizePaymentMethod(t *testing.T) {
	assert.Equal(t, models.PaymentMethodCard, normalizePaymentMethod("Card"))
	assert.Equal(t, models.PaymentMethodCard, normalizePaymentMethod(" CARD "))
	assert.Equal(t, models.PaymentMethodCash, normalizePaymentMethod("cash"))
	assert.Equal(t, models.PaymentMethodCash, normalizePaymentMethod(""))
	assert.Equal(t, models.PaymentMethodCash, normalizePaymentMethod("venmo"))
}

func TestDollarsToCents(t *testing.T) {
	assert.Equal(t, int64(400), dollarsToCents(4.00))
	assert.Equal(t, int64(455), dollarsToCents(4.55))
	assert.Equal(t, int64(0), dollarsToCents(0))
	// 0.29 is not representable exactly in binary; rounding must stay stable.
	assert.Equal(t, int64(29), dollarsToCents(0.29))
}

func requireCheckoutKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var checkoutErr *models.CheckoutError
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, kind, checkoutErr.Kind)
}
