package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrRefreshTokenReused is returned when a refresh token that was already
	// rotated, or never issued, is presented again.
	ErrRefreshTokenReused = errors.New("refresh token already used")
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
