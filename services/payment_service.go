package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
)

// MinimumChargeMinor is the smallest amount the provider accepts, in minor units.
const MinimumChargeMinor = 50

// ToMinorUnits converts a major-unit amount (dollars) to minor units (cents).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// PaymentService drives payment intents and the order transitions they cause.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, *ServiceError)
	UpdateOrderStatus(ctx context.Context, paymentIntentID, status string, metadata map[string]string) *ServiceError
	GetOrderPaymentStatus(ctx context.Context, paymentIntentID string) (*models.OrderPaymentStatus, *ServiceError)
	FulfillOrder(ctx context.Context, paymentIntentID string, metadata map[string]string) *ServiceError
}

type paymentServiceImpl struct {
	provider        PaymentProvider
	orders          repository.OrderRepository
	carts           repository.CartRepository
	events          eventPublisher
	metrics         aws_pkg.MetricsRecorder
	defaultCurrency string
	logger          *zap.Logger
	now             func() time.Time
}

func NewPaymentService(
	provider PaymentProvider,
	orders repository.OrderRepository,
	carts repository.CartRepository,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	metrics aws_pkg.MetricsRecorder,
	defaultCurrency string,
	logger *zap.Logger,
) PaymentService {
	if metrics == nil {
		metrics = aws_pkg.NopMetrics{}
	}
	return &paymentServiceImpl{
		provider:        provider,
		orders:          orders,
		carts:           carts,
		events:          eventPublisher{snsClient: snsClient, snsTopicArn: snsTopicArn, logger: logger},
		metrics:         metrics,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             time.Now,
	}
}

// CreatePaymentIntent creates an intent for amount minor units. When metadata
// names an orderId, the amount must match that order's total and the intent
// is linked to it.
func (s *paymentServiceImpl) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, *ServiceError) {
	if amount < MinimumChargeMinor {
		return nil, badRequest("Invalid payment amount")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	var order *models.Order
	if orderID := metadata["orderId"]; orderID != "" {
		o, serr := s.findOrderByID(ctx, orderID)
		if serr != nil {
			return nil, serr
		}
		if o.Status != models.OrderStatusPending || o.PaymentStatus == models.PaymentStatusCompleted {
			return nil, &ServiceError{StatusCode: http.StatusConflict, Message: "Order is not awaiting payment"}
		}
		if ToMinorUnits(o.Total) != amount {
			return nil, badRequest("Payment amount does not match order total")
		}
		order = o
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, amount, currency, metadata)
	if err != nil {
		s.logger.Error("Failed to create payment intent", zap.Int64("amount", amount), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "Failed to create payment intent", Details: err.Error()}
	}

	if order != nil {
		if err := s.orders.Updates(ctx, order.ID, map[string]interface{}{"payment_intent_id": intent.ID}); err != nil {
			s.logger.Error("Failed to link payment intent to order",
				zap.String("order_id", order.ID.String()),
				zap.String("payment_intent_id", intent.ID),
				zap.Error(err),
			)
			return nil, internal("Failed to link payment to order")
		}
	}

	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricPaymentIntentsCreated, map[string]string{"Currency": currency})
	s.logger.Info("Payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)
	return intent, nil
}

// UpdateOrderStatus applies a payment transition. Repeating a call leaves the
// same end state, and a completed payment is never moved back.
func (s *paymentServiceImpl) UpdateOrderStatus(ctx context.Context, paymentIntentID, status string, metadata map[string]string) *ServiceError {
	if paymentIntentID == "" {
		return badRequest("paymentIntentId is required")
	}
	if !models.IsValidPaymentStatus(status) {
		return badRequest("Invalid status. Must be one of: completed, failed, processing")
	}

	order, serr := s.locateOrder(ctx, paymentIntentID, metadata)
	if serr != nil {
		return serr
	}
	if order == nil {
		// Intent created without a backend order.
		s.logger.Warn("No order linked to payment intent, acknowledging",
			zap.String("payment_intent_id", paymentIntentID),
			zap.String("status", status),
		)
		s.recordTransition(ctx, status)
		if status == models.PaymentStatusCompleted {
			s.clearCart(ctx, metadata["userId"])
		}
		return nil
	}

	if order.PaymentStatus == models.PaymentStatusCompleted && status != models.PaymentStatusCompleted {
		s.logger.Warn("Ignoring payment transition on completed order",
			zap.String("order_id", order.ID.String()),
			zap.String("status", status),
		)
		return nil
	}

	merged := mergeMetadata(order.PaymentMetadata, metadata)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return internal("Failed to update order status")
	}

	fields := map[string]interface{}{
		"payment_status":   status,
		"payment_metadata": string(encoded),
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID != paymentIntentID {
		fields["payment_intent_id"] = paymentIntentID
	}
	if status == models.PaymentStatusCompleted {
		fields["status"] = models.OrderStatusCompleted
		if order.CompletedAt == nil {
			fields["completed_at"] = s.now().UTC()
		}
	}

	if err := s.orders.Updates(ctx, order.ID, fields); err != nil {
		s.logger.Error("Failed to update order payment status",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err),
		)
		return internal("Failed to update order status")
	}

	s.recordTransition(ctx, status)
	if status == models.PaymentStatusCompleted {
		userID := metadata["userId"]
		if userID == "" {
			userID = order.UserID
		}
		s.clearCart(ctx, userID)
	}

	s.events.publish(ctx, models.OrderEvent{
		Type:            models.EventOrderPaymentUpdated,
		OrderID:         order.ID.String(),
		UserID:          order.UserID,
		PaymentIntentID: paymentIntentID,
		Status:          status,
		Total:           order.Total,
		Currency:        order.Currency,
		Metadata:        metadata,
	})

	s.logger.Info("Order payment status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_intent_id", paymentIntentID),
		zap.String("status", status),
	)
	return nil
}

// GetOrderPaymentStatus merges the live intent with the stored order. A
// provider failure is 502 and a backend failure 500; a missing order is not
// an error.
func (s *paymentServiceImpl) GetOrderPaymentStatus(ctx context.Context, paymentIntentID string) (*models.OrderPaymentStatus, *ServiceError) {
	const failure = "Failed to get payment status"

	intent, err := s.provider.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		s.logger.Error("Failed to retrieve payment intent", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: failure, Details: err.Error()}
	}

	metadata := make(map[string]string, len(intent.Metadata)+5)
	for k, v := range intent.Metadata {
		metadata[k] = v
	}
	// Owner ids stay private: this endpoint is unauthenticated.
	delete(metadata, "userId")

	order, err := s.orders.FindByPaymentIntentID(ctx, paymentIntentID)
	switch {
	case err == nil:
		metadata["orderId"] = order.ID.String()
		metadata["orderStatus"] = order.Status
		metadata["orderTotal"] = strconv.FormatFloat(order.Total, 'f', 2, 64)
		if order.PaymentStatus != "" {
			metadata["paymentStatus"] = order.PaymentStatus
		}
		if order.FulfillmentStatus != "" {
			metadata["fulfillmentStatus"] = order.FulfillmentStatus
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		s.logger.Error("Failed to load order for payment status", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: failure, Details: "order lookup failed"}
	}

	return &models.OrderPaymentStatus{
		Status:       intent.Status,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Created:      intent.Created,
		Metadata:     metadata,
		IsPaid:       intent.Status == "succeeded",
		IsFailed:     intent.Status == "requires_payment_method" || intent.Status == "canceled",
		IsProcessing: intent.Status == "processing" || intent.Status == "requires_action",
		LastUpdated:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

// FulfillOrder requests preparation of a paid order. A second request for the
// same order is a no-op.
func (s *paymentServiceImpl) FulfillOrder(ctx context.Context, paymentIntentID string, metadata map[string]string) *ServiceError {
	if paymentIntentID == "" {
		return badRequest("paymentIntentId is required")
	}
	order, serr := s.locateOrder(ctx, paymentIntentID, metadata)
	if serr != nil {
		return serr
	}
	if order == nil {
		s.logger.Warn("No order linked to payment intent, nothing to fulfil", zap.String("payment_intent_id", paymentIntentID))
		return nil
	}
	if order.Status != models.OrderStatusCompleted {
		return &ServiceError{StatusCode: http.StatusConflict, Message: "Order has not been paid"}
	}
	if order.FulfillmentStatus != "" {
		s.logger.Info("Order already sent to fulfilment", zap.String("order_id", order.ID.String()))
		return nil
	}

	now := s.now().UTC()
	if err := s.orders.Updates(ctx, order.ID, map[string]interface{}{
		"fulfillment_status":       models.FulfillmentRequested,
		"fulfillment_requested_at": now,
	}); err != nil {
		s.logger.Error("Failed to mark order for fulfilment", zap.String("order_id", order.ID.String()), zap.Error(err))
		return internal("Failed to fulfill order")
	}

	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricFulfillmentsRequested, nil)
	s.events.publish(ctx, models.OrderEvent{
		Type:            models.EventFulfillmentRequested,
		OrderID:         order.ID.String(),
		UserID:          order.UserID,
		PaymentIntentID: paymentIntentID,
		Status:          models.FulfillmentRequested,
		Total:           order.Total,
		Currency:        order.Currency,
		Metadata:        metadata,
		Timestamp:       now,
	})

	s.logger.Info("Order fulfilment requested", zap.String("order_id", order.ID.String()))
	return nil
}

// locateOrder finds the order by payment intent id, falling back to the
// orderId carried in metadata. It returns a nil order and no error when the
// intent belongs to no order.
func (s *paymentServiceImpl) locateOrder(ctx context.Context, paymentIntentID string, metadata map[string]string) (*models.Order, *ServiceError) {
	order, err := s.orders.FindByPaymentIntentID(ctx, paymentIntentID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to load order", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		return nil, internal("Failed to load order")
	}
	orderID := metadata["orderId"]
	if orderID == "" {
		return nil, nil
	}
	order, serr := s.findOrderByID(ctx, orderID)
	if serr != nil && serr.StatusCode == http.StatusNotFound {
		s.logger.Warn("Payment intent names an unknown order",
			zap.String("payment_intent_id", paymentIntentID),
			zap.String("order_id", orderID),
		)
		return nil, nil
	}
	return order, serr
}

func (s *paymentServiceImpl) findOrderByID(ctx context.Context, orderID string) (*models.Order, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, notFound("Order not found")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Order not found")
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID), zap.Error(err))
		return nil, internal("Failed to load order")
	}
	return order, nil
}

func (s *paymentServiceImpl) recordTransition(ctx context.Context, status string) {
	switch status {
	case models.PaymentStatusCompleted:
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricPaymentSucceeded, nil)
	case models.PaymentStatusFailed:
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricPaymentFailed, nil)
	}
}

// clearCart drops the server cart of the payer. The guest cart is shared by
// every anonymous shopper and is left alone.
func (s *paymentServiceImpl) clearCart(ctx context.Context, userID string) {
	if userID == "" || userID == models.GuestUserID || s.carts == nil {
		return
	}
	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		s.logger.Warn("Failed to clear cart after payment", zap.String("user_id", userID), zap.Error(err))
	}
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
