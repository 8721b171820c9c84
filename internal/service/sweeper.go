package service

import (
	"context"
	"time"

	"github.com/dom/jober-auth/internal/metrics"
	"go.uber.org/zap"
)

// Sweeper removes rows that can no longer be used: expired OTP codes and
// refresh tokens past their retention.
type Sweeper struct {
	otps      *OTPService
	tokens    *TokenService
	retention time.Duration
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

func NewSweeper(otps *OTPService, tokens *TokenService, retention time.Duration, logger *zap.Logger, rec *metrics.Recorder) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		otps:      otps,
		tokens:    tokens,
		retention: retention,
		logger:    logger.Named("sweeper"),
		metrics:   rec,
	}
}

type SweepResult struct {
	PhoneOtps     int64
	RefreshTokens int64
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	n, err := s.otps.Sweep(ctx)
	if err != nil {
		return res, err
	}
	res.PhoneOtps = n
	s.metrics.SweepDeleted("phone_otps", n)

	n, err = s.tokens.PurgeExpired(ctx, s.retention)
	if err != nil {
		return res, err
	}
	res.RefreshTokens = n
	s.metrics.SweepDeleted("refresh_tokens", n)

	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
				continue
			}
			if res.PhoneOtps > 0 || res.RefreshTokens > 0 {
				s.logger.Info("sweep completed",
					zap.Int64("phone_otps", res.PhoneOtps),
					zap.Int64("refresh_tokens", res.RefreshTokens))
			}
		}
	}
}
