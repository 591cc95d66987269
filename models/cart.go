package models

import (
	"math"
	"time"
)

// GuestUserID owns the shared cart of anonymous callers.
const GuestUserID = "guest"

// CartItem is one line of a cart, unique by ItemID.
type CartItem struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Cart is the server-side cart kept per user in Redis.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Total is derived on every call and rounded to cents.
func (c *Cart) Total() float64 {
	return LineTotal(c.Items)
}

// LineTotal sums price*quantity over items, rounded to cents.
func LineTotal(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return math.Round(total*100) / 100
}

type AddCartItemRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// CartView is the response body for cart endpoints.
type CartView struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}
