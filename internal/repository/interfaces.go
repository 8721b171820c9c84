package repository

import (
	"context"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/google/uuid"
)

// Lookups return domain.ErrNotFound when no row matches and
// domain.ErrIdentityTaken on unique violations. Any other error is a
// storage failure.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// CreateWithRoles inserts user and its role assignments in one transaction.
	CreateWithRoles(ctx context.Context, user *domain.User, roles []domain.Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// FindByEmailOrPhone matches either identifier; empty arguments are ignored.
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error)
}

type RoleRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Role, error)
	// AddMany inserts assignments, ignoring ones that already exist.
	AddMany(ctx context.Context, userID uuid.UUID, roles []domain.Role) error
	// Replace atomically swaps the user's assignments for roles.
	Replace(ctx context.Context, userID uuid.UUID, roles []domain.Role) error
}

type RefreshTokenRepository interface {
	// ReplaceActive revokes every active token of token.UserID and inserts
	// token, as one transaction serialized per user.
	ReplaceActive(ctx context.Context, token *domain.RefreshToken, now time.Time) error
	// ConsumeActive revokes the active token with the given hash in a single
	// conditional update and returns it. Only one caller can win.
	ConsumeActive(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error)
	// RevokeByHash revokes a matching active token and reports whether one changed.
	RevokeByHash(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	// PurgeExpired deletes tokens that expired before the cutoff.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type PhoneOtpRepository interface {
	CountSince(ctx context.Context, phone string, since time.Time) (int64, error)
	// ReplaceUnconsumed marks every unconsumed code for otp.Phone consumed and
	// inserts otp in one transaction.
	ReplaceUnconsumed(ctx context.Context, otp *domain.PhoneOtp) error
	// LatestLive returns the most recently created unconsumed, unexpired code.
	LatestLive(ctx context.Context, phone string, now time.Time) (*domain.PhoneOtp, error)
	// ReserveAttempt spends one attempt of a live code in a single conditional
	// update, reporting false once maxAttempts have been spent or the code is
	// gone. Callers compare the code only after a successful reservation.
	ReserveAttempt(ctx context.Context, id uuid.UUID, now time.Time, maxAttempts int) (bool, error)
	// Consume marks a live code consumed, reporting whether this call consumed it.
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// DeleteExpired removes codes expired at now and created before
	// createdBefore. Younger rows still count toward the request window.
	DeleteExpired(ctx context.Context, now, createdBefore time.Time) (int64, error)
}

type JobPostingRepository interface {
	Create(ctx context.Context, job *domain.JobPosting) error
	List(ctx context.Context, limit, offset int) ([]*domain.JobPosting, error)
}

type Repositories struct {
	User         UserRepository
	Role         RoleRepository
	RefreshToken RefreshTokenRepository
	PhoneOtp     PhoneOtpRepository
	JobPosting   JobPostingRepository
}
