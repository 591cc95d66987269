// Package checkout drives the client side of a payment: it creates the
// intent from the cart, confirms it with the provider and reports where the
// UI should go next.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Error codes carried on the failure navigation.
const (
	CodeUnknown             = "unknown_error"
	CodePaymentNotCompleted = "payment_not_completed"
	CodeUnexpected          = "unexpected_error"
)

const (
	messageGeneric    = "Payment failed. Please try again."
	messageSystem     = "A system error occurred. Please try again later."
	messageUnexpected = "An unexpected error occurred. Please try again."

	successPath = "/payment/success"
	failurePath = "/payment/failure"
)

// ErrConfirmationInProgress is returned when Submit is called while a
// previous submission is still processing.
var ErrConfirmationInProgress = errors.New("payment confirmation already in progress")

// Intent is what the provider reports after a confirmation attempt.
type Intent struct {
	ID     string
	Status string
}

// ProviderError is a classified provider failure.
type ProviderError struct {
	Type    string
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
}

// Confirmer confirms a payment intent with the provider. Provider-side
// rejections come back as *ProviderError; anything else is unexpected.
type Confirmer interface {
	Confirm(ctx context.Context, paymentIntentID, clientSecret string) (*Intent, error)
}

// Navigation is where the UI should send the user next.
type Navigation struct {
	Path  string
	Query url.Values
}

func (n Navigation) String() string {
	if len(n.Query) == 0 {
		return n.Path
	}
	return n.Path + "?" + n.Query.Encode()
}

// Result is the outcome of one confirmation.
type Result struct {
	State           State
	PaymentIntentID string
	ErrorCode       string
	Message         string
	Navigation      Navigation
}

// Confirmation is the idle → processing → succeeded|failed state machine for
// one payment intent. A failed confirmation may be submitted again.
type Confirmation struct {
	mu        sync.Mutex
	state     State
	confirmer Confirmer
	onSuccess func(ctx context.Context, paymentIntentID string) error
	logger    *zap.Logger
}

// NewConfirmation returns an idle confirmation. onSuccess runs once the
// provider reports the intent succeeded; it may be nil.
func NewConfirmation(confirmer Confirmer, onSuccess func(ctx context.Context, paymentIntentID string) error, logger *zap.Logger) *Confirmation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmation{state: StateIdle, confirmer: confirmer, onSuccess: onSuccess, logger: logger}
}

func (c *Confirmation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit confirms the intent and classifies the outcome. It never panics and
// only returns an error when the confirmation is already processing or has
// already succeeded.
func (c *Confirmation) Submit(ctx context.Context, paymentIntentID, clientSecret string) (*Result, error) {
	c.mu.Lock()
	switch c.state {
	case StateProcessing:
		c.mu.Unlock()
		return nil, ErrConfirmationInProgress
	case StateSucceeded:
		c.mu.Unlock()
		return nil, errors.New("payment already confirmed")
	}
	c.state = StateProcessing
	c.mu.Unlock()

	res := c.confirm(ctx, paymentIntentID, clientSecret)

	c.mu.Lock()
	c.state = res.State
	c.mu.Unlock()
	return res, nil
}

func (c *Confirmation) confirm(ctx context.Context, paymentIntentID, clientSecret string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Payment confirmation panicked", zap.String("payment_intent_id", paymentIntentID), zap.Any("panic", r))
			res = failure(paymentIntentID, CodeUnexpected, messageUnexpected)
		}
	}()

	intent, err := c.confirmer.Confirm(ctx, paymentIntentID, clientSecret)
	if err != nil {
		var perr *ProviderError
		if !errors.As(err, &perr) {
			c.logger.Error("Payment confirmation failed unexpectedly", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
			return failure(paymentIntentID, CodeUnexpected, messageUnexpected)
		}
		code := perr.Code
		if code == "" {
			code = CodeUnknown
		}
		c.logger.Info("Payment declined by provider",
			zap.String("payment_intent_id", paymentIntentID),
			zap.String("type", perr.Type),
			zap.String("code", code),
		)
		return failure(paymentIntentID, code, providerMessage(perr))
	}

	if intent == nil || intent.Status != "succeeded" {
		return failure(paymentIntentID, CodePaymentNotCompleted, messageGeneric)
	}

	if c.onSuccess != nil {
		if err := c.onSuccess(ctx, paymentIntentID); err != nil {
			// The charge went through, so the result is still a success.
			c.logger.Warn("Post-payment callback failed", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		}
	}

	return &Result{
		State:           StateSucceeded,
		PaymentIntentID: paymentIntentID,
		Navigation: Navigation{
			Path:  successPath,
			Query: url.Values{"payment_intent": {paymentIntentID}},
		},
	}
}

// providerMessage decides what the user sees for a provider rejection.
func providerMessage(err *ProviderError) string {
	switch err.Type {
	case "card_error", "validation_error":
		if err.Message != "" {
			return err.Message
		}
		return messageGeneric
	case "api_error":
		return messageSystem
	default:
		return messageGeneric
	}
}

func failure(paymentIntentID, code, message string) *Result {
	return &Result{
		State:           StateFailed,
		PaymentIntentID: paymentIntentID,
		ErrorCode:       code,
		Message:         message,
		Navigation: Navigation{
			Path:  failurePath,
			Query: url.Values{"payment_intent": {paymentIntentID}, "error": {code}},
		},
	}
}
