package models

import "time"

// MenuItem is a catalogue entry stored in MongoDB.
type MenuItem struct {
	ID          string     `bson:"_id" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Description string     `bson:"description" json:"description"`
	Price       float64    `bson:"price" json:"price"`
	Category    string     `bson:"category" json:"category"`
	Image       string     `bson:"image" json:"image"`
	Available   bool       `bson:"available" json:"available"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty" json:"-"`
}

type CreateMenuItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Category    string  `json:"category" binding:"required"`
	Image       string  `json:"image" binding:"required"`
}

// UpdateMenuItemRequest carries a partial update; nil fields are left unchanged.
type UpdateMenuItemRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gt=0"`
	Category    *string  `json:"category"`
	Image       *string  `json:"image"`
	Available   *bool    `json:"available"`
}

type ImageUploadRequest struct {
	ContentType string `json:"contentType" binding:"required,oneof=image/jpeg image/png image/webp"`
}
