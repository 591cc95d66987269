package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/middleware"
	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
	"github.com/rpr91/Malandros/services"
)

// minimumChargeMajor is services.MinimumChargeMinor expressed in major units.
const minimumChargeMajor = 0.50

// PaymentController serves the payment intent endpoints and the provider webhook.
type PaymentController struct {
	payments services.PaymentService
	verifier services.WebhookVerifier
	events   repository.EventStore
	metrics  aws_pkg.MetricsRecorder
	logger   *zap.Logger
}

func NewPaymentController(
	payments services.PaymentService,
	verifier services.WebhookVerifier,
	events repository.EventStore,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) *PaymentController {
	if metrics == nil {
		metrics = aws_pkg.NopMetrics{}
	}
	return &PaymentController{payments: payments, verifier: verifier, events: events, metrics: metrics, logger: logger}
}

// CreatePaymentIntent handles POST /api/create-payment-intent. The amount is
// in major units; anything below 0.50 is rejected before the provider is called.
func (pc *PaymentController) CreatePaymentIntent(c *gin.Context) {
	var req models.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil || *req.Amount < minimumChargeMajor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment amount"})
		return
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	// The payer is whoever the request resolved to, never the body.
	if userID, err := middleware.GetUserID(c); err == nil {
		metadata["userId"] = userID
	}

	intent, svcErr := pc.payments.CreatePaymentIntent(c.Request.Context(), services.ToMinorUnits(*req.Amount), req.Currency, metadata)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, models.CreatePaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

// GetOrderStatus handles GET /api/orders/:orderId, where orderId is the
// payment intent id.
func (pc *PaymentController) GetOrderStatus(c *gin.Context) {
	paymentIntentID := strings.TrimSpace(c.Param("orderId"))
	if paymentIntentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order ID is required"})
		return
	}

	status, svcErr := pc.payments.GetOrderPaymentStatus(c.Request.Context(), paymentIntentID)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, status)
}

// UpdateOrderStatus handles POST /api/orders/update-status.
func (pc *PaymentController) UpdateOrderStatus(c *gin.Context) {
	var req models.PaymentStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentIntentId and status are required"})
		return
	}

	if svcErr := pc.payments.UpdateOrderStatus(c.Request.Context(), req.PaymentIntentID, req.Status, req.Metadata); svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FulfillOrder handles POST /api/orders/fulfill.
func (pc *PaymentController) FulfillOrder(c *gin.Context) {
	var req models.FulfillOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentIntentId is required"})
		return
	}

	if svcErr := pc.payments.FulfillOrder(c.Request.Context(), req.PaymentIntentID, req.Metadata); svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
