package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
)

const maxWebhookBodyBytes = 65536

// StripeWebhook handles POST /api/webhooks. The signature is verified before
// anything else; each event id is dispatched at most once, and a failed
// dispatch answers 500 so the provider redelivers.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Webhook Error: %v", err)})
		return
	}

	event, err := pc.verifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		pc.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Webhook Error: %v", err)})
		return
	}

	ctx := c.Request.Context()
	log := pc.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	claimed := false
	if pc.events != nil {
		ok, err := pc.events.Claim(ctx, event.ID)
		switch {
		case err != nil:
			// Processing twice is recoverable; dropping a payment event is not.
			log.Warn("Webhook event store unavailable, dispatching unclaimed", zap.Error(err))
		case !ok:
			log.Info("Skipping duplicate webhook event")
			_ = pc.metrics.RecordCount(ctx, aws_pkg.MetricWebhookDuplicates, nil)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		default:
			claimed = true
		}
	}

	if err := pc.dispatch(ctx, event); err != nil {
		log.Error("Webhook handler failed", zap.Error(err))
		if claimed {
			if relErr := pc.events.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
				log.Error("Failed to release webhook event claim", zap.Error(relErr))
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (pc *PaymentController) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		pi, err := decodeIntent(event)
		if err != nil {
			return err
		}
		pc.logger.Info("Payment succeeded", zap.String("payment_intent_id", pi.ID))

		statusMeta := withMetadata(pi.Metadata, map[string]string{
			"amountReceived": strconv.FormatInt(pi.AmountReceived, 10),
			"currency":       string(pi.Currency),
		})
		if pi.PaymentMethod != nil && pi.PaymentMethod.ID != "" {
			statusMeta["paymentMethod"] = pi.PaymentMethod.ID
		}
		if svcErr := pc.payments.UpdateOrderStatus(ctx, pi.ID, models.PaymentStatusCompleted, statusMeta); svcErr != nil {
			return fmt.Errorf("update order status: %w", svcErr)
		}

		fulfilMeta := withMetadata(pi.Metadata, map[string]string{
			"amount":   strconv.FormatInt(pi.Amount, 10),
			"currency": string(pi.Currency),
		})
		if svcErr := pc.payments.FulfillOrder(ctx, pi.ID, fulfilMeta); svcErr != nil {
			return fmt.Errorf("fulfill order: %w", svcErr)
		}

	case "payment_intent.payment_failed":
		pi, err := decodeIntent(event)
		if err != nil {
			return err
		}
		failure := map[string]string{}
		if pi.LastPaymentError != nil {
			failure["lastPaymentError"] = pi.LastPaymentError.Msg
			failure["failureCode"] = string(pi.LastPaymentError.Code)
			failure["failureType"] = string(pi.LastPaymentError.Type)
		}
		pc.logger.Warn("Payment failed",
			zap.String("payment_intent_id", pi.ID),
			zap.String("failure_code", failure["failureCode"]),
		)
		if svcErr := pc.payments.UpdateOrderStatus(ctx, pi.ID, models.PaymentStatusFailed, withMetadata(pi.Metadata, failure)); svcErr != nil {
			return fmt.Errorf("update order status: %w", svcErr)
		}

	case "payment_intent.processing":
		pi, err := decodeIntent(event)
		if err != nil {
			return err
		}
		if svcErr := pc.payments.UpdateOrderStatus(ctx, pi.ID, models.PaymentStatusProcessing, pi.Metadata); svcErr != nil {
			return fmt.Errorf("update order status: %w", svcErr)
		}

	default:
		pc.logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}
	return nil
}

func decodeIntent(event stripe.Event) (*stripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return &pi, nil
}

func withMetadata(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
