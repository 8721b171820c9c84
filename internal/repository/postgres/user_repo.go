package postgres

import (
	"context"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) CreateWithRoles(ctx context.Context, user *domain.User, roles []domain.Role) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return addRoles(tx, user.ID, roles)
	}))
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "phone = ?", phone).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error) {
	if email == "" && phone == "" {
		return nil, domain.ErrNotFound
	}

	query := r.db.WithContext(ctx)
	switch {
	case email != "" && phone != "":
		query = query.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		query = query.Where("phone = ?", phone)
	}

	var user domain.User
	if err := query.Order("created_at").First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
