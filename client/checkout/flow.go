package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/rpr91/Malandros/client/cartstore"
	"github.com/rpr91/Malandros/client/httpclient"
	"github.com/rpr91/Malandros/models"
)

// ErrEmptyCart is returned when checkout starts with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// PaymentAPI is the storefront's payment surface as the client sees it.
// Amounts are in major units.
type PaymentAPI interface {
	CreatePaymentIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (*models.CreatePaymentIntentResponse, error)
	PaymentStatus(ctx context.Context, paymentIntentID string) (*models.OrderPaymentStatus, error)
}

// APIClient implements PaymentAPI over the storefront HTTP client.
type APIClient struct {
	http *httpclient.Client
}

func NewAPIClient(c *httpclient.Client) *APIClient {
	return &APIClient{http: c}
}

func (a *APIClient) CreatePaymentIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (*models.CreatePaymentIntentResponse, error) {
	req := models.CreatePaymentIntentRequest{Amount: &amount, Currency: currency, Metadata: metadata}
	var out models.CreatePaymentIntentResponse
	if err := a.http.DoJSON(ctx, http.MethodPost, "/api/create-payment-intent", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *APIClient) PaymentStatus(ctx context.Context, paymentIntentID string) (*models.OrderPaymentStatus, error) {
	var out models.OrderPaymentStatus
	if err := a.http.DoJSON(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(paymentIntentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session is one started checkout.
type Session struct {
	PaymentIntentID string
	ClientSecret    string
	Amount          float64
	Currency        string

	confirmation *Confirmation
}

func (s *Session) State() State {
	return s.confirmation.State()
}

// Flow ties the cart to the payment API and the provider confirmation.
type Flow struct {
	cart      *cartstore.Store
	api       PaymentAPI
	confirmer Confirmer
	logger    *zap.Logger
}

func NewFlow(cart *cartstore.Store, api PaymentAPI, confirmer Confirmer, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{cart: cart, api: api, confirmer: confirmer, logger: logger}
}

// Start creates a payment intent for the current cart total.
func (f *Flow) Start(ctx context.Context, currency string, metadata map[string]string) (*Session, error) {
	total := f.cart.Total()
	if total <= 0 {
		return nil, ErrEmptyCart
	}
	currency = strings.ToLower(currency)

	intent, err := f.api.CreatePaymentIntent(ctx, total, currency, metadata)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	f.logger.Info("Checkout started",
		zap.String("payment_intent_id", intent.PaymentIntentID),
		zap.Float64("amount", total),
	)
	return &Session{
		PaymentIntentID: intent.PaymentIntentID,
		ClientSecret:    intent.ClientSecret,
		Amount:          total,
		Currency:        currency,
		confirmation:    NewConfirmation(f.confirmer, f.onSuccess, f.logger),
	}, nil
}

// Confirm runs the session's confirmation. The cart is cleared once the
// provider reports success.
func (f *Flow) Confirm(ctx context.Context, s *Session) (*Result, error) {
	return s.confirmation.Submit(ctx, s.PaymentIntentID, s.ClientSecret)
}

// Status fetches the composite payment status of a session.
func (f *Flow) Status(ctx context.Context, s *Session) (*models.OrderPaymentStatus, error) {
	return f.api.PaymentStatus(ctx, s.PaymentIntentID)
}

func (f *Flow) onSuccess(ctx context.Context, paymentIntentID string) error {
	f.logger.Info("Payment succeeded, clearing cart", zap.String("payment_intent_id", paymentIntentID))
	return f.cart.Clear(ctx)
}
