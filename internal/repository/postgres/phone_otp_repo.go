package postgres

import (
	"context"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type phoneOtpRepository struct {
	db *gorm.DB
}

func NewPhoneOtpRepository(db *gorm.DB) *phoneOtpRepository {
	return &phoneOtpRepository{db: db}
}

func (r *phoneOtpRepository) CountSince(ctx context.Context, phone string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.PhoneOtp{}).
		Where("phone = ? AND created_at >= ?", phone, since).
		Count(&count).Error
	return count, err
}

func (r *phoneOtpRepository) ReplaceUnconsumed(ctx context.Context, otp *domain.PhoneOtp) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// superseded rows stay until expiry so the request window still counts them
		if err := tx.Model(&domain.PhoneOtp{}).
			Where("phone = ? AND consumed_at IS NULL", otp.Phone).
			Update("consumed_at", otp.CreatedAt).Error; err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
}

func (r *phoneOtpRepository) LatestLive(ctx context.Context, phone string, now time.Time) (*domain.PhoneOtp, error) {
	var otp domain.PhoneOtp
	err := r.db.WithContext(ctx).
		Where("phone = ? AND consumed_at IS NULL AND expires_at > ?", phone, now).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

func (r *phoneOtpRepository) ReserveAttempt(ctx context.Context, id uuid.UUID, now time.Time, maxAttempts int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.PhoneOtp{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ? AND attempts < ?", id, now, maxAttempts).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *phoneOtpRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.PhoneOtp{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ?", id, now).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *phoneOtpRepository) DeleteExpired(ctx context.Context, now, createdBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&domain.PhoneOtp{}, "expires_at < ? AND created_at < ?", now, createdBefore)
	return res.RowsAffected, res.Error
}
