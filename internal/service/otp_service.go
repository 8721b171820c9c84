package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/metrics"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// OTPService owns every PhoneOtp write.
type OTPService struct {
	repo    repository.PhoneOtpRepository
	policy  config.Policy
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewOTPService(repo repository.PhoneOtpRepository, cfg *config.Config, logger *zap.Logger, rec *metrics.Recorder) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		repo:    repo,
		policy:  cfg.Policy,
		now:     time.Now,
		logger:  logger.Named("otp"),
		metrics: rec,
	}
}

// WithClock replaces the time source.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

// Generate returns a uniformly random code in [100000, 999999].
func (s *OTPService) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// RateLimited reports whether phone has used up its requests in the trailing window.
func (s *OTPService) RateLimited(ctx context.Context, phone string) (bool, error) {
	since := s.now().Add(-s.policy.OTPRateLimitWindow)
	count, err := s.repo.CountSince(ctx, phone, since)
	if err != nil {
		return false, domain.Internal("count otp requests", err)
	}
	return count >= int64(s.policy.OTPMaxRequests), nil
}

// Create stores a new code for phone, replacing any unconsumed one, and
// returns the plaintext for delivery.
func (s *OTPService) Create(ctx context.Context, phone string) (string, error) {
	// count-then-insert is not atomic; a race can exceed the limit by one
	limited, err := s.RateLimited(ctx, phone)
	if err != nil {
		return "", err
	}
	if limited {
		s.metrics.OTPCreated("rate_limited")
		return "", domain.ErrRateLimited
	}

	code, err := s.Generate()
	if err != nil {
		return "", domain.Internal("generate otp", err)
	}

	now := s.now()
	otp := &domain.PhoneOtp{
		ID:        uuid.New(),
		Phone:     phone,
		CodeHash:  HashToken(code),
		ExpiresAt: now.Add(s.policy.OTPTTL),
		CreatedAt: now,
	}
	if err := s.repo.ReplaceUnconsumed(ctx, otp); err != nil {
		return "", domain.Internal("store otp", err)
	}

	s.metrics.OTPCreated("ok")
	return code, nil
}

// Verify checks code against the latest live code for phone. Missing, expired
// and consumed codes all report false; a code out of attempts fails with
// domain.ErrAttemptsExceeded. Every comparison spends an attempt first, so
// concurrent guesses cannot exceed the cap.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (bool, error) {
	now := s.now()
	otp, err := s.repo.LatestLive(ctx, phone, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.OTPVerified("not_found")
			return false, nil
		}
		return false, domain.Internal("load otp", err)
	}

	if otp.Attempts >= s.policy.OTPMaxAttempts {
		s.metrics.OTPVerified("attempts_exceeded")
		return false, domain.ErrAttemptsExceeded
	}

	reserved, err := s.repo.ReserveAttempt(ctx, otp.ID, now, s.policy.OTPMaxAttempts)
	if err != nil {
		return false, domain.Internal("record otp attempt", err)
	}
	if !reserved {
		return s.reservationLost(ctx, phone, otp, now)
	}

	if subtle.ConstantTimeCompare([]byte(HashToken(code)), []byte(otp.CodeHash)) != 1 {
		s.metrics.OTPVerified("mismatch")
		return false, nil
	}

	consumed, err := s.repo.Consume(ctx, otp.ID, now)
	if err != nil {
		return false, domain.Internal("consume otp", err)
	}
	if !consumed {
		// lost a race with another verification of the same code
		s.metrics.OTPVerified("not_found")
		return false, nil
	}

	s.metrics.OTPVerified("ok")
	return true, nil
}

// reservationLost resolves a failed reservation: other verifications either
// spent the remaining attempts or consumed the code.
func (s *OTPService) reservationLost(ctx context.Context, phone string, otp *domain.PhoneOtp, now time.Time) (bool, error) {
	current, err := s.repo.LatestLive(ctx, phone, now)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, domain.Internal("load otp", err)
	}
	if err == nil && current.ID == otp.ID && current.Attempts >= s.policy.OTPMaxAttempts {
		s.metrics.OTPVerified("attempts_exceeded")
		return false, domain.ErrAttemptsExceeded
	}
	s.metrics.OTPVerified("not_found")
	return false, nil
}

// Sweep deletes expired codes that have also left the request window, so the
// rate limit keeps seeing every request of the trailing hour.
func (s *OTPService) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.repo.DeleteExpired(ctx, now, now.Add(-s.policy.OTPRateLimitWindow))
	if err != nil {
		return 0, domain.Internal("delete expired otps", err)
	}
	return n, nil
}
