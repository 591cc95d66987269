package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
)

// eventPublisher emits order lifecycle events to SNS. Publishing is best
// effort: failures are logged and never fail the calling operation.
type eventPublisher struct {
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

func (p eventPublisher) publish(ctx context.Context, event models.OrderEvent) {
	if p.snsClient == nil || p.snsTopicArn == "" {
		p.logger.Debug("SNS client not configured, skipping event", zap.String("event_type", event.Type))
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("event_type", event.Type), zap.Error(err))
		return
	}

	if err := p.snsClient.Publish(ctx, p.snsTopicArn, event.Type, eventBytes); err != nil {
		p.logger.Error("Failed to publish event", zap.String("event_type", event.Type), zap.Error(err))
		return
	}

	p.logger.Info("Published event",
		zap.String("event_type", event.Type),
		zap.String("order_id", event.OrderID),
	)
}
