package config_test

import (
	"testing"
	"time"

	"github.com/dom/jober-auth/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *config.Config)
	}{
		{
			name: "defaults with secret",
			env:  map[string]string{"JWT_ACCESS_SECRET": "s3cret"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "8080", cfg.Port)
				assert.Equal(t, "s3cret", cfg.JWTSecret)
				assert.Equal(t, config.StorePostgres, cfg.Store)
				assert.Equal(t, 15*time.Minute, cfg.Policy.AccessTokenTTL)
				assert.Equal(t, 30*24*time.Hour, cfg.Policy.RefreshTokenTTL)
				assert.Equal(t, 3, cfg.Policy.OTPMaxAttempts)
				assert.False(t, cfg.SMS.Configured())
			},
		},
		{
			name: "legacy secret name",
			env:  map[string]string{"JWT_SECRET": "legacy"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "legacy", cfg.JWTSecret)
			},
		},
		{
			name:    "missing secret",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "memory store rejected in production",
			env: map[string]string{
				"JWT_ACCESS_SECRET": "s3cret",
				"STORE":             "memory",
				"ENVIRONMENT":       "production",
			},
			wantErr: true,
		},
		{
			name: "unknown store",
			env: map[string]string{
				"JWT_ACCESS_SECRET": "s3cret",
				"STORE":             "mongo",
			},
			wantErr: true,
		},
		{
			name: "sms provider and durations",
			env: map[string]string{
				"JWT_ACCESS_SECRET":    "s3cret",
				"PLASGATE_PRIVATE_KEY": "pk",
				"PLASGATE_SECRET":      "sec",
				"PLASGATE_SENDER":      "Jober",
				"OTP_SWEEP_INTERVAL":   "1m",
			},
			check: func(t *testing.T, cfg *config.Config) {
				assert.True(t, cfg.SMS.Configured())
				assert.Equal(t, time.Minute, cfg.SweepInterval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// empty values fall back to defaults
			for _, key := range []string{"JWT_ACCESS_SECRET", "JWT_SECRET", "STORE", "ENVIRONMENT",
				"PLASGATE_PRIVATE_KEY", "PLASGATE_SECRET", "PLASGATE_SENDER", "OTP_SWEEP_INTERVAL"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
