package service

import (
	"context"
	"errors"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/google/uuid"
)

// UserService serves profile reads and self-service role selection.
type UserService struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, roleRepo repository.RoleRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		roleRepo: roleRepo,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal("get user", err)
	}
	return user, nil
}

// SelectRoles replaces the user's self-selectable roles. Admin cannot be
// chosen here, and an existing Admin assignment is kept.
func (s *UserService) SelectRoles(ctx context.Context, userID uuid.UUID, requested []string) ([]domain.Role, error) {
	roles := domain.ParseSelfSelectableRoles(requested)
	if len(roles) == 0 {
		return nil, domain.Validation("At least one valid role is required")
	}

	current, err := s.roleRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal("load roles", err)
	}
	next := roles
	if domain.ContainsRole(current, domain.RoleAdmin) {
		next = append(append([]domain.Role{}, roles...), domain.RoleAdmin)
	}

	if err := s.roleRepo.Replace(ctx, userID, next); err != nil {
		return nil, domain.Internal("replace roles", err)
	}
	return roles, nil
}

// GrantAdmin adds Admin to the user's roles. Operator use only.
func (s *UserService) GrantAdmin(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}
	if err := s.roleRepo.AddMany(ctx, userID, []domain.Role{domain.RoleAdmin}); err != nil {
		return domain.Internal("grant admin", err)
	}
	return nil
}
