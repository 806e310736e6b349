package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bobapos/internal/models"
	"bobapos/internal/service"
	"bobapos/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	checkout *service.CheckoutService
	catalog  *service.CatalogService
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout *service.CheckoutService, catalog *service.CatalogService) *Handler {
	return &Handler{
		checkout: checkout,
		catalog:  catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/void", h.voidOrder)

		v1.GET("/menu", h.getMenu)
		v1.POST("/menu", h.createMenuItem)

		v1.GET("/inventory", h.getInventory)
		v1.POST("/inventory", h.createInventoryItem)
		v1.POST("/inventory/:id/restock", h.restock)

		v1.GET("/customers/:id", h.getCustomer)

		v1.GET("/alerts", h.getStockAlerts)
		v1.POST("/alerts/:id/ack", h.ackStockAlert)

		v1.GET("/reports/sales", h.getSalesReport)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// placeOrder handles checkout submissions
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		status, kind := checkoutStatus(err)
		c.JSON(status, gin.H{
			"error": err.Error(),
			"kind":  kind,
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// checkoutStatus maps a checkout failure onto an HTTP status. User errors
// are 400; integrity faults and transaction failures are 500.
func checkoutStatus(err error) (int, string) {
	var checkoutErr *models.CheckoutError
	if errors.As(err, &checkoutErr) {
		if checkoutErr.UserError() {
			return http.StatusBadRequest, string(checkoutErr.Kind)
		}
		return http.StatusInternalServerError, string(checkoutErr.Kind)
	}
	return http.StatusInternalServerError, string(models.ErrKindTransactionFailure)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, lines, err := h.checkout.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": lines,
	})
}

// voidOrder handles the manager void action
func (h *Handler) voidOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.checkout.VoidOrder(c.Request.Context(), orderID, body.Reason); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"status":   models.OrderStatusVoided,
	})
}

// getMenu returns the catalog
func (h *Handler) getMenu(c *gin.Context) {
	items, err := h.catalog.Menu(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load menu",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createMenuItem adds a menu item with its recipe
func (h *Handler) createMenuItem(c *gin.Context) {
	var req service.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.catalog.CreateMenuItem(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// getInventory returns all ingredient rows
func (h *Handler) getInventory(c *gin.Context) {
	items, err := h.catalog.Inventory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load inventory",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createInventoryItem adds a new ingredient
func (h *Handler) createInventoryItem(c *gin.Context) {
	var item models.InventoryItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.catalog.CreateInventoryItem(c.Request.Context(), &item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// restock adds stock to an ingredient
func (h *Handler) restock(c *gin.Context) {
	inventoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid inventory ID"})
		return
	}

	var body struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.catalog.Restock(c.Request.Context(), inventoryID, body.Quantity)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}

// getCustomer returns a loyalty member and their point balance
func (h *Handler) getCustomer(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer ID"})
		return
	}

	customer, err := h.catalog.Customer(c.Request.Context(), customerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, customer)
}

// getStockAlerts returns unacknowledged low-stock alerts
func (h *Handler) getStockAlerts(c *gin.Context) {
	alerts, err := h.catalog.StockAlerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load alerts",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// ackStockAlert marks an alert as handled
func (h *Handler) ackStockAlert(c *gin.Context) {
	alertID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	if err := h.catalog.AcknowledgeStockAlert(c.Request.Context(), alertID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alert_id": alertID, "acknowledged": true})
}

// getSalesReport returns daily sales aggregates
func (h *Handler) getSalesReport(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	rows, err := h.catalog.SalesReport(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build report",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
