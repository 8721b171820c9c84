package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/metrics"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenPair is a freshly issued access/refresh pair. RefreshToken is the only
// copy of the plaintext secret.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	Roles            []domain.Role
	RefreshExpiresAt time.Time
}

// TokenService signs access tokens and owns every refresh token write.
type TokenService struct {
	refreshRepo repository.RefreshTokenRepository
	roleRepo    repository.RoleRepository
	secret      []byte
	policy      config.Policy
	now         func() time.Time
	logger      *zap.Logger
	metrics     *metrics.Recorder
}

func NewTokenService(refreshRepo repository.RefreshTokenRepository, roleRepo repository.RoleRepository, cfg *config.Config, logger *zap.Logger, rec *metrics.Recorder) (*TokenService, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, errors.New("token service: signing secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		refreshRepo: refreshRepo,
		roleRepo:    roleRepo,
		secret:      []byte(cfg.JWTSecret),
		policy:      cfg.Policy,
		now:         time.Now,
		logger:      logger.Named("token"),
		metrics:     rec,
	}, nil
}

// WithClock replaces the time source.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// SignAccess produces an HS256 token for userID carrying the deduplicated roles.
func (s *TokenService) SignAccess(userID uuid.UUID, roles []domain.Role) (string, error) {
	now := s.now()
	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.IsValid() && !containsString(roleNames, string(r)) {
			roleNames = append(roleNames, string(r))
		}
	}

	claims := AccessClaims{
		Roles: roleNames,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.policy.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyAccess checks signature, expiry and required claims. Every failure is
// domain.ErrInvalidToken; unknown role names are dropped.
func (s *TokenService) VerifyAccess(tokenString string) (*domain.Identity, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		s.logger.Debug("access token rejected", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.logger.Debug("access token subject malformed", zap.String("sub", claims.Subject))
		return nil, domain.ErrInvalidToken
	}
	if claims.Roles == nil {
		s.logger.Debug("access token missing roles claim")
		return nil, domain.ErrInvalidToken
	}

	return &domain.Identity{
		UserID: userID,
		Roles:  domain.ParseRoles(claims.Roles),
	}, nil
}

// Issue signs a new access token and replaces the user's active refresh token.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	roles, err := s.roleRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal("load roles", err)
	}
	roles = domain.SortRoles(roles)

	accessToken, err := s.SignAccess(userID, roles)
	if err != nil {
		return nil, domain.Internal("sign access token", err)
	}

	refreshToken, err := newRefreshSecret(s.policy.RefreshTokenEntropy)
	if err != nil {
		return nil, domain.Internal("generate refresh token", err)
	}

	now := s.now()
	row := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: now.Add(s.policy.RefreshTokenTTL),
		CreatedAt: now,
	}
	if err := s.refreshRepo.ReplaceActive(ctx, row, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal("store refresh token", err)
	}

	s.metrics.TokenIssued()
	s.logger.Debug("token pair issued", zap.String("user_id", userID.String()))

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		Roles:            roles,
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

// Rotate consumes an active refresh token and issues a new pair for its owner.
// Unknown, revoked, expired or already-used tokens fail with domain.ErrInvalidRefresh.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		s.metrics.RefreshRotated("invalid")
		return nil, domain.ErrInvalidRefresh
	}

	consumed, err := s.refreshRepo.ConsumeActive(ctx, HashToken(refreshToken), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.RefreshRotated("invalid")
			return nil, domain.ErrInvalidRefresh
		}
		return nil, domain.Internal("consume refresh token", err)
	}

	pair, err := s.Issue(ctx, consumed.UserID)
	if err != nil {
		s.logger.Error("refresh token consumed but reissue failed",
			zap.String("user_id", consumed.UserID.String()), zap.Error(err))
		return nil, err
	}

	s.metrics.RefreshRotated("ok")
	return pair, nil
}

// Revoke invalidates an active refresh token and reports whether one changed.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}
	changed, err := s.refreshRepo.RevokeByHash(ctx, HashToken(refreshToken), s.now())
	if err != nil {
		return false, domain.Internal("revoke refresh token", err)
	}
	if changed {
		s.metrics.RefreshRevoked("revoked")
	} else {
		s.metrics.RefreshRevoked("noop")
	}
	return changed, nil
}

// PurgeExpired deletes refresh tokens that expired more than retention ago.
func (s *TokenService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.refreshRepo.PurgeExpired(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, domain.Internal("purge refresh tokens", err)
	}
	return n, nil
}

// HashToken is the one-way digest persisted for refresh tokens and OTP codes.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func newRefreshSecret(size int) (string, error) {
	if size < 32 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
