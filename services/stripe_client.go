package services

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/rpr91/Malandros/models"
)

// PaymentProvider is the server-side surface of the payment provider.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, error)
	GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntentResult, error)
}

// WebhookVerifier checks a webhook signature and decodes the event.
type WebhookVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type StripeService struct {
	webhookSecret string
}

// NewStripeService configures the process-wide stripe key.
func NewStripeService(secretKey, webhookSecret string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{webhookSecret: webhookSecret}
}

func (s *StripeService) CreatePaymentIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return intentResult(pi), nil
}

func (s *StripeService) GetPaymentIntent(_ context.Context, id string) (*models.PaymentIntentResult, error) {
	pi, err := paymentintent.Get(id, nil)
	if err != nil {
		return nil, err
	}
	return intentResult(pi), nil
}

func (s *StripeService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, s.webhookSecret)
}

func intentResult(pi *stripe.PaymentIntent) *models.PaymentIntentResult {
	return &models.PaymentIntentResult{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Created:      pi.Created,
		Metadata:     pi.Metadata,
	}
}
