package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Name      string    `gorm:"not null" json:"name"`
	Role      string    `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// PublicUser is the user shape returned by the auth endpoints.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

// RefreshToken records an issued refresh token by its jti. A token is honoured
// at most once: ReplacedByTokenID is set when it is rotated.
type RefreshToken struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TokenID           string    `gorm:"uniqueIndex;not null"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index"`
	ExpiresAt         time.Time `gorm:"not null;index"`
	ReplacedByTokenID *string   `gorm:"index"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

// Usable reports whether the token may still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.ReplacedByTokenID == nil && now.Before(t.ExpiresAt)
}
