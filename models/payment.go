package models

import "time"

// CreatePaymentIntentRequest is the body of POST /api/create-payment-intent.
// Amount is in major currency units.
type CreatePaymentIntentRequest struct {
	Amount   *float64          `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// PaymentIntentResult is the local view of a provider payment intent.
type PaymentIntentResult struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Created      int64
	Metadata     map[string]string
}

// PaymentStatusUpdateRequest is the body of POST /api/orders/update-status.
type PaymentStatusUpdateRequest struct {
	PaymentIntentID string            `json:"paymentIntentId" binding:"required"`
	Status          string            `json:"status" binding:"required"`
	Metadata        map[string]string `json:"metadata"`
}

// FulfillOrderRequest is the body of POST /api/orders/fulfill.
type FulfillOrderRequest struct {
	PaymentIntentID string            `json:"paymentIntentId" binding:"required"`
	Metadata        map[string]string `json:"metadata"`
}

// OrderPaymentStatus is the composite status served by GET /api/orders/:orderId.
type OrderPaymentStatus struct {
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Created      int64             `json:"created"`
	Metadata     map[string]string `json:"metadata"`
	IsPaid       bool              `json:"isPaid"`
	IsFailed     bool              `json:"isFailed"`
	IsProcessing bool              `json:"isProcessing"`
	LastUpdated  string            `json:"lastUpdated"`
}

// OrderEvent is published to SNS on order and payment lifecycle changes.
type OrderEvent struct {
	Type            string            `json:"type"`
	OrderID         string            `json:"orderId,omitempty"`
	UserID          string            `json:"userId,omitempty"`
	PaymentIntentID string            `json:"paymentIntentId,omitempty"`
	Status          string            `json:"status,omitempty"`
	Total           float64           `json:"total,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

const (
	EventOrderCreated         = "order.created"
	EventOrderPaymentUpdated  = "order.payment_updated"
	EventFulfillmentRequested = "order.fulfillment_requested"
)
