package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
)

// MessagePoller is satisfied by aws_pkg.SQSConsumer.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// FulfillmentConsumer moves requested orders into preparation as
// order.fulfillment_requested events arrive on the fulfilment queue.
type FulfillmentConsumer struct {
	poller MessagePoller
	orders repository.OrderRepository
	logger *zap.Logger
}

func NewFulfillmentConsumer(poller MessagePoller, orders repository.OrderRepository, logger *zap.Logger) *FulfillmentConsumer {
	return &FulfillmentConsumer{poller: poller, orders: orders, logger: logger}
}

// Start blocks until ctx is cancelled.
func (c *FulfillmentConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting fulfilment queue consumer")
	if err := c.poller.StartPolling(ctx, c.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Fulfilment consumer stopped", zap.Error(err))
	}
}

// HandleMessage processes one queue body. Malformed or foreign messages are
// acknowledged so they are not redelivered forever.
func (c *FulfillmentConsumer) HandleMessage(ctx context.Context, body string) error {
	body = aws_pkg.UnwrapSNSEnvelope(body)

	var evt models.OrderEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("Dropping malformed fulfilment message", zap.Error(err))
		return nil
	}
	if evt.Type != models.EventFulfillmentRequested {
		c.logger.Debug("Ignoring event", zap.String("event_type", evt.Type))
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		c.logger.Warn("Dropping fulfilment message without order id", zap.String("order_id", evt.OrderID))
		return nil
	}

	err = c.orders.Updates(ctx, orderID, map[string]interface{}{"fulfillment_status": models.FulfillmentPreparing})
	if errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn("Fulfilment requested for unknown order", zap.String("order_id", evt.OrderID))
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info("Order in preparation", zap.String("order_id", evt.OrderID))
	return nil
}
