package postgres

import (
	"context"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *roleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Role, error) {
	var rows []domain.UserRole
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	values := make([]string, len(rows))
	for i, row := range rows {
		values[i] = string(row.Role)
	}
	return domain.ParseRoles(values), nil
}

func (r *roleRepository) AddMany(ctx context.Context, userID uuid.UUID, roles []domain.Role) error {
	return addRoles(r.db.WithContext(ctx), userID, roles)
}

func (r *roleRepository) Replace(ctx context.Context, userID uuid.UUID, roles []domain.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.UserRole{}, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return addRoles(tx, userID, roles)
	})
}

func addRoles(db *gorm.DB, userID uuid.UUID, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]*domain.UserRole, len(roles))
	for i, role := range roles {
		rows[i] = &domain.UserRole{UserID: userID, Role: role, CreatedAt: now}
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}
