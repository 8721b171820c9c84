package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/dom/jober-auth/internal/sms"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService runs the credential flows and hands issuance to TokenService.
type AuthService struct {
	userRepo repository.UserRepository
	tokens   *TokenService
	otps     *OTPService
	sender   sms.Sender
	cfg      *config.Config
	logger   *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenService, otps *OTPService, sender sms.Sender, cfg *config.Config, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		otps:     otps,
		sender:   sender,
		cfg:      cfg,
		logger:   logger.Named("auth"),
	}
}

type RegisterInput struct {
	Email    string
	Phone    string
	Password string
	Roles    []string
}

type LoginInput struct {
	Email    string
	Phone    string
	Password string
}

type AuthResult struct {
	User      *domain.User
	Tokens    *TokenPair
	IsNewUser bool
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	phone := NormalizePhone(input.Phone)
	if email == "" && phone == "" {
		return nil, domain.Validation("Email or phone is required")
	}
	if len(input.Password) < s.cfg.Policy.MinPasswordLength {
		return nil, domain.Validation("Password must be at least 8 characters")
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, domain.Validation("Password must be at most 72 bytes")
		}
		return nil, domain.Internal("hash password", err)
	}
	hash := string(hashedPassword)

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        optional(email),
		Phone:        optional(phone),
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	roles := domain.ParseSelfSelectableRoles(input.Roles)
	if err := s.userRepo.CreateWithRoles(ctx, user, roles); err != nil {
		if errors.Is(err, domain.ErrIdentityTaken) {
			return nil, domain.ErrIdentityTaken
		}
		return nil, domain.Internal("create user", err)
	}

	tokens, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return &AuthResult{User: user, Tokens: tokens, IsNewUser: true}, nil
}

// Login fails with domain.ErrInvalidCredentials for unknown users, users
// without a password and wrong passwords alike.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	phone := NormalizePhone(input.Phone)
	if email == "" && phone == "" {
		return nil, domain.Validation("Email or phone is required")
	}
	if input.Password == "" {
		return nil, domain.Validation("Password is required")
	}

	user, err := s.userRepo.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal("find user", err)
	}
	if !user.HasPassword() {
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// SendOTP creates a code for phone and delivers it. The plaintext code is
// returned so non-production callers can echo it.
func (s *AuthService) SendOTP(ctx context.Context, phone string) (string, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return "", domain.Validation("Phone number is required")
	}

	code, err := s.otps.Create(ctx, phone)
	if err != nil {
		return "", err
	}

	if err := s.sender.Send(ctx, phone, code); err != nil {
		s.logger.Error("otp delivery failed", zap.String("phone", phone), zap.Error(err))
		return "", domain.Internal("deliver otp", err)
	}
	return code, nil
}

// VerifyOTP logs in the owner of phone, creating a password-less user on
// first use.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*AuthResult, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, domain.Validation("Phone number is required")
	}
	if code == "" {
		return nil, domain.Validation("OTP code is required")
	}

	ok, err := s.otps.Verify(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidOTP
	}

	user, isNew, err := s.findOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens, IsNewUser: isNew}, nil
}

func (s *AuthService) findOrCreateByPhone(ctx context.Context, phone string) (*domain.User, bool, error) {
	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, domain.Internal("find user", err)
	}

	now := time.Now()
	user = &domain.User{
		ID:        uuid.New(),
		Phone:     &phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrIdentityTaken) {
			// created concurrently by another verification
			existing, getErr := s.userRepo.GetByPhone(ctx, phone)
			if getErr != nil {
				return nil, false, domain.Internal("find user", getErr)
			}
			return existing, false, nil
		}
		return nil, false, domain.Internal("create user", err)
	}

	s.logger.Info("user created from otp", zap.String("user_id", user.ID.String()))
	return user, true, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.Validation("refreshToken is required")
	}
	return s.tokens.Rotate(ctx, refreshToken)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, domain.Validation("refreshToken is required")
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims surrounding whitespace.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
