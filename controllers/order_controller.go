package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/services"
)

// OrderController serves customer order placement and history, plus the
// admin order views.
type OrderController struct {
	orders services.OrderService
}

func NewOrderController(orders services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// CreateOrder handles POST /api/v1/orders.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "Order items are required", Message: err.Error()})
		return
	}

	order, svcErr := oc.orders.CreateOrder(c.Request.Context(), cartOwner(c), &req)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusCreated, order, "Order created")
}

// ListOrders handles GET /api/v1/orders.
func (oc *OrderController) ListOrders(c *gin.Context) {
	orders, svcErr := oc.orders.ListOrders(c.Request.Context(), cartOwner(c))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, orders, "")
}

// GetOrder handles GET /api/v1/orders/:orderId.
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, svcErr := oc.orders.GetOrder(c.Request.Context(), cartOwner(c), c.Param("orderId"))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, order, "")
}

// ListAllOrders handles GET /api/v1/admin/orders.
func (oc *OrderController) ListAllOrders(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	orders, total, svcErr := oc.orders.ListAllOrders(c.Request.Context(), page, limit)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	respondData(c, http.StatusOK, gin.H{
		"orders": orders,
		"meta": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
			"has_more":    total > int64(page*limit),
		},
	}, "")
}

// AdminGetOrder handles GET /api/v1/admin/orders/:orderId.
func (oc *OrderController) AdminGetOrder(c *gin.Context) {
	order, svcErr := oc.orders.GetOrderByID(c.Request.Context(), c.Param("orderId"))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, order, "")
}

// SetOrderStatus handles PUT /api/v1/admin/orders/:orderId/status.
func (oc *OrderController) SetOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "Invalid status. Must be one of: pending, completed, cancelled",
		})
		return
	}

	order, svcErr := oc.orders.SetOrderStatus(c.Request.Context(), c.Param("orderId"), req.Status)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, order, "Order status updated")
}

// AdminCheck handles GET /api/v1/admin/check; reaching it means the admin key was accepted.
func AdminCheck(c *gin.Context) {
	respondData(c, http.StatusOK, gin.H{"isAdmin": true}, "Admin access granted")
}
