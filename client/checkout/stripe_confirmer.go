package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

// StripeConfirmer confirms intents through the Stripe API with a fixed
// payment method, the way a terminal or test harness does without Elements.
type StripeConfirmer struct {
	client        paymentintent.Client
	paymentMethod string
	returnURL     string
}

// NewStripeConfirmer uses key for every call. paymentMethod is a payment
// method id such as "pm_card_visa" in test mode.
func NewStripeConfirmer(key, paymentMethod, returnURL string) *StripeConfirmer {
	return &StripeConfirmer{
		client:        paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key},
		paymentMethod: paymentMethod,
		returnURL:     returnURL,
	}
}

func (s *StripeConfirmer) Confirm(_ context.Context, paymentIntentID, clientSecret string) (*Intent, error) {
	if !strings.HasPrefix(clientSecret, paymentIntentID+"_secret_") {
		return nil, &ProviderError{Type: "validation_error", Code: "client_secret_mismatch", Message: "The client secret does not belong to this payment."}
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(s.paymentMethod),
	}
	if s.returnURL != "" {
		params.ReturnURL = stripe.String(s.returnURL)
	}

	pi, err := s.client.Confirm(paymentIntentID, params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	return &Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

// classifyStripeError keeps Stripe's type and code so the UI can tell an
// actionable card problem from an outage.
func classifyStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return err
	}
	return &ProviderError{Type: string(serr.Type), Code: string(serr.Code), Message: serr.Msg}
}
