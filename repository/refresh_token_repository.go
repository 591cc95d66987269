package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rpr91/Malandros/models"
)

// RefreshTokenRepository persists issued refresh tokens so each one can be
// exchanged at most once.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByTokenID(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	// Rotate marks oldTokenID as replaced by next and stores next, atomically.
	// It returns ErrRefreshTokenReused when oldTokenID was already replaced.
	Rotate(ctx context.Context, oldTokenID string, next *models.RefreshToken) error
	Revoke(ctx context.Context, tokenID string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type GormRefreshTokenRepository struct {
	db *gorm.DB
}

func NewGormRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *GormRefreshTokenRepository) FindByTokenID(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (r *GormRefreshTokenRepository) Rotate(ctx context.Context, oldTokenID string, next *models.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The IS NULL guard makes concurrent rotations of the same token race
		// on the row: only one UPDATE can affect it.
		result := tx.Model(&models.RefreshToken{}).
			Where("token_id = ? AND replaced_by_token_id IS NULL", oldTokenID).
			Update("replaced_by_token_id", next.TokenID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRefreshTokenReused
		}
		return tx.Create(next).Error
	})
}

// Revoke consumes a token without issuing a successor (logout).
func (r *GormRefreshTokenRepository) Revoke(ctx context.Context, tokenID string) error {
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token_id = ? AND replaced_by_token_id IS NULL", tokenID).
		Update("replaced_by_token_id", "revoked").
		Error
}

// RevokeAllForUser consumes every live token of the user.
func (r *GormRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND replaced_by_token_id IS NULL", userID).
		Update("replaced_by_token_id", "revoked").
		Error
}

func (r *GormRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
