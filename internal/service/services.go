package service

import (
	"time"

	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/metrics"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/dom/jober-auth/internal/sms"
	"go.uber.org/zap"
)

type Services struct {
	Token   *TokenService
	OTP     *OTPService
	Guard   *Guard
	Auth    *AuthService
	User    *UserService
	Job     *JobService
	Sweeper *Sweeper
}

func NewServices(repos *repository.Repositories, cfg *config.Config, sender sms.Sender, logger *zap.Logger, rec *metrics.Recorder) (*Services, error) {
	tokens, err := NewTokenService(repos.RefreshToken, repos.Role, cfg, logger, rec)
	if err != nil {
		return nil, err
	}
	otps := NewOTPService(repos.PhoneOtp, cfg, logger, rec)

	return &Services{
		Token:   tokens,
		OTP:     otps,
		Guard:   NewGuard(tokens, logger, rec),
		Auth:    NewAuthService(repos.User, tokens, otps, sender, cfg, logger),
		User:    NewUserService(repos.User, repos.Role),
		Job:     NewJobService(repos.JobPosting),
		Sweeper: NewSweeper(otps, tokens, cfg.RefreshRetention, logger, rec),
	}, nil
}

// WithClock replaces the time source of every time-sensitive service.
func (s *Services) WithClock(now func() time.Time) *Services {
	s.Token.WithClock(now)
	s.OTP.WithClock(now)
	return s
}
