package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Payment lifecycle states relayed from the payment provider.
const (
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
)

const (
	FulfillmentRequested = "requested"
	FulfillmentPreparing = "preparing"
)

type Order struct {
	ID                     uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                 string            `gorm:"type:varchar(64);not null;index" json:"userId"`
	Items                  []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Total                  float64           `gorm:"type:numeric(10,2);not null" json:"total"`
	Currency               string            `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	Status                 string            `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentIntentID        *string           `gorm:"uniqueIndex" json:"paymentIntentId,omitempty"`
	PaymentStatus          string            `gorm:"type:varchar(20)" json:"paymentStatus,omitempty"`
	PaymentMetadata        map[string]string `gorm:"serializer:json;type:jsonb" json:"paymentMetadata,omitempty"`
	FulfillmentStatus      string            `gorm:"type:varchar(20)" json:"fulfillmentStatus,omitempty"`
	FulfillmentRequestedAt *time.Time        `json:"fulfillmentRequestedAt,omitempty"`
	CompletedAt            *time.Time        `json:"completedAt,omitempty"`
	CancelledAt            *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt              time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

type OrderItem struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	OrderID  uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ItemID   string    `gorm:"type:varchar(64);not null" json:"itemId"`
	Name     string    `gorm:"not null" json:"name"`
	Price    float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	Quantity int       `gorm:"not null" json:"quantity"`
}

// IsValidOrderStatus reports whether s is an admin-settable order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValidPaymentStatus reports whether s is a payment lifecycle status.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type CreateOrderItem struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items    []CreateOrderItem `json:"items" binding:"required,min=1,dive"`
	Currency string            `json:"currency"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
