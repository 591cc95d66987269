package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
)

// OrderService defines order placement, history and admin status control.
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest) (*models.Order, *ServiceError)
	ListOrders(ctx context.Context, userID string) ([]models.Order, *ServiceError)
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, *ServiceError)
	ListAllOrders(ctx context.Context, page, limit int) ([]models.Order, int64, *ServiceError)
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, *ServiceError)
	SetOrderStatus(ctx context.Context, orderID, status string) (*models.Order, *ServiceError)
}

type orderServiceImpl struct {
	orders          repository.OrderRepository
	menu            repository.MenuRepository
	events          eventPublisher
	metrics         aws_pkg.MetricsRecorder
	defaultCurrency string
	logger          *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	menu repository.MenuRepository,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	metrics aws_pkg.MetricsRecorder,
	defaultCurrency string,
	logger *zap.Logger,
) OrderService {
	if metrics == nil {
		metrics = aws_pkg.NopMetrics{}
	}
	return &orderServiceImpl{
		orders:          orders,
		menu:            menu,
		events:          eventPublisher{snsClient: snsClient, snsTopicArn: snsTopicArn, logger: logger},
		metrics:         metrics,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// CreateOrder prices every line from the menu; client-supplied prices are
// never trusted.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	if len(req.Items) == 0 {
		return nil, badRequest("Order must contain at least one item")
	}

	quantities := make(map[string]int, len(req.Items))
	var ordered []string
	for _, line := range req.Items {
		if line.ItemID == "" || line.Quantity < 1 {
			return nil, badRequest("Each item needs an itemId and a quantity of at least 1")
		}
		if _, seen := quantities[line.ItemID]; !seen {
			ordered = append(ordered, line.ItemID)
		}
		quantities[line.ItemID] += line.Quantity
	}

	items := make([]models.OrderItem, 0, len(ordered))
	priced := make([]models.CartItem, 0, len(ordered))
	for _, id := range ordered {
		menuItem, err := s.menu.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, badRequest(fmt.Sprintf("Menu item not found: %s", id))
			}
			s.logger.Error("Failed to load menu item", zap.String("item_id", id), zap.Error(err))
			return nil, internal("Failed to create order")
		}
		if !menuItem.Available {
			return nil, badRequest(fmt.Sprintf("Menu item is not available: %s", id))
		}
		items = append(items, models.OrderItem{
			ItemID:   menuItem.ID,
			Name:     menuItem.Name,
			Price:    menuItem.Price,
			Quantity: quantities[id],
		})
		priced = append(priced, models.CartItem{Price: menuItem.Price, Quantity: quantities[id]})
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	order := &models.Order{
		UserID:   userID,
		Items:    items,
		Total:    models.LineTotal(priced),
		Currency: currency,
		Status:   models.OrderStatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to create order")
	}

	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricOrdersCreated, nil)
	s.events.publish(ctx, models.OrderEvent{
		Type:     models.EventOrderCreated,
		OrderID:  order.ID.String(),
		UserID:   userID,
		Status:   order.Status,
		Total:    order.Total,
		Currency: order.Currency,
	})

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID),
		zap.Float64("total", order.Total),
	)
	return order, nil
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, userID string) ([]models.Order, *ServiceError) {
	orders, err := s.orders.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to fetch orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, notFound("Order not found")
	}
	order, err := s.orders.FindByIDAndUserID(ctx, id, userID)
	return s.orderResult(order, err, orderID)
}

func (s *orderServiceImpl) ListAllOrders(ctx context.Context, page, limit int) ([]models.Order, int64, *ServiceError) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	orders, total, err := s.orders.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list all orders", zap.Error(err))
		return nil, 0, internal("Failed to fetch orders")
	}
	return orders, total, nil
}

func (s *orderServiceImpl) GetOrderByID(ctx context.Context, orderID string) (*models.Order, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, notFound("Order not found")
	}
	order, err := s.orders.FindByID(ctx, id)
	return s.orderResult(order, err, orderID)
}

// SetOrderStatus is the admin override. Once a payment intent is linked the
// payment lifecycle owns the status and the override is refused.
func (s *orderServiceImpl) SetOrderStatus(ctx context.Context, orderID, status string) (*models.Order, *ServiceError) {
	if !models.IsValidOrderStatus(status) {
		return nil, badRequest("Invalid status. Must be one of: pending, completed, cancelled")
	}
	order, serr := s.GetOrderByID(ctx, orderID)
	if serr != nil {
		return nil, serr
	}
	if order.PaymentIntentID != nil {
		return nil, &ServiceError{StatusCode: http.StatusConflict, Message: "Order status is managed by its payment"}
	}
	if order.Status == status {
		return order, nil
	}

	fields := map[string]interface{}{"status": status}
	now := time.Now().UTC()
	switch status {
	case models.OrderStatusCompleted:
		fields["completed_at"] = now
	case models.OrderStatusCancelled:
		fields["cancelled_at"] = now
	}
	if err := s.orders.Updates(ctx, order.ID, fields); err != nil {
		s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		return nil, internal("Failed to update order status")
	}

	s.logger.Info("Order status updated by admin", zap.String("order_id", orderID), zap.String("status", status))
	order.Status = status
	return order, nil
}

func (s *orderServiceImpl) orderResult(order *models.Order, err error, orderID string) (*models.Order, *ServiceError) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Order not found")
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID), zap.Error(err))
		return nil, internal("Failed to fetch order")
	}
	return order, nil
}
