package postgres

import (
	"context"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *refreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) ReplaceActive(ctx context.Context, token *domain.RefreshToken, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the owner so concurrent issuance for one user runs one at a time.
		var owner domain.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&owner, "id = ?", token.UserID).Error
		if err != nil {
			return translate(err)
		}

		err = tx.Model(&domain.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", token.UserID).
			Update("revoked_at", now).Error
		if err != nil {
			return err
		}

		return tx.Create(token).Error
	})
}

func (r *refreshTokenRepository) ConsumeActive(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	var consumed []domain.RefreshToken
	err := r.db.WithContext(ctx).
		Model(&consumed).
		Clauses(clause.Returning{}).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("revoked_at", now).Error
	if err != nil {
		return nil, err
	}
	if len(consumed) == 0 {
		return nil, domain.ErrNotFound
	}
	return &consumed[0], nil
}

func (r *refreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *refreshTokenRepository) CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Count(&count).Error
	return count, err
}

func (r *refreshTokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&domain.RefreshToken{}, "expires_at < ?", before)
	return res.RowsAffected, res.Error
}
