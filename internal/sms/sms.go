// Package sms delivers one-time codes to phones.
package sms

import (
	"context"
	"fmt"

	"github.com/dom/jober-auth/internal/config"
	"go.uber.org/zap"
)

// Sender delivers a verification code to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// Message renders the text sent to the user.
func Message(code string) string {
	return fmt.Sprintf("Your Jober verification code is: %s. Valid for 5 minutes.", code)
}

// NewSender picks the delivery channel for cfg. Without a provider, codes go to
// the log outside production and nowhere in production.
func NewSender(cfg *config.Config, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SMS.Configured() {
		return NewPlasGateClient(cfg.SMS, nil)
	}
	if cfg.IsProduction() {
		logger.Warn("sms provider not configured; OTP delivery disabled")
		return NoopSender{}
	}
	return &LogSender{logger: logger}
}

// LogSender writes codes to the diagnostic log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phone, code string) error {
	s.logger.Info("sms delivery skipped, no provider configured",
		zap.String("phone", phone),
		zap.String("otp", code),
	)
	return nil
}

// NoopSender drops every message.
type NoopSender struct{}

func (NoopSender) Send(context.Context, string, string) error { return nil }
