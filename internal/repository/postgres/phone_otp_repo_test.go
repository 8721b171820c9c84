package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository/postgres"
	"github.com/dom/jober-auth/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otpPhone = "+85512345678"

func newPhoneOtp(hash string, now time.Time) *domain.PhoneOtp {
	return &domain.PhoneOtp{
		ID:        uuid.New(),
		Phone:     otpPhone,
		CodeHash:  hash,
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
	}
}

func TestPhoneOtpRepository_ReplaceAndCount(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPhoneOtpRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	first := newPhoneOtp("a", now.Add(-2*time.Minute))
	second := newPhoneOtp("b", now)
	require.NoError(t, repo.ReplaceUnconsumed(ctx, first))
	require.NoError(t, repo.ReplaceUnconsumed(ctx, second))

	count, err := repo.CountSince(ctx, otpPhone, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "superseded codes still count toward the window")

	count, err = repo.CountSince(ctx, otpPhone, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	latest, err := repo.LatestLive(ctx, otpPhone, now)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = repo.LatestLive(ctx, otpPhone, now.Add(10*time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPhoneOtpRepository_ReserveAttempt(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPhoneOtpRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now()

	otp := newPhoneOtp("h", now)
	require.NoError(t, repo.ReplaceUnconsumed(ctx, otp))

	var reserved atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ReserveAttempt(ctx, otp.ID, now, 3)
			assert.NoError(t, err)
			if ok {
				reserved.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), reserved.Load())

	latest, err := repo.LatestLive(ctx, otpPhone, now)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Attempts)

	ok, err := repo.ReserveAttempt(ctx, otp.ID, now, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	expired := newPhoneOtp("e", now.Add(-10*time.Minute))
	require.NoError(t, repo.ReplaceUnconsumed(ctx, expired))
	ok, err = repo.ReserveAttempt(ctx, expired.ID, now, 3)
	require.NoError(t, err)
	assert.False(t, ok, "expired code has no attempts to spend")
}

func TestPhoneOtpRepository_Consume(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPhoneOtpRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now()

	otp := newPhoneOtp("h", now)
	require.NoError(t, repo.ReplaceUnconsumed(ctx, otp))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Consume(ctx, otp.ID, now)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	_, err := repo.LatestLive(ctx, otpPhone, now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPhoneOtpRepository_DeleteExpired(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPhoneOtpRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.ReplaceUnconsumed(ctx, newPhoneOtp("old", now.Add(-2*time.Hour))))
	require.NoError(t, repo.ReplaceUnconsumed(ctx, newPhoneOtp("recent", now.Add(-10*time.Minute))))
	require.NoError(t, repo.ReplaceUnconsumed(ctx, newPhoneOtp("live", now)))

	n, err := repo.DeleteExpired(ctx, now, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired codes inside the request window are kept")

	count, err := repo.CountSince(ctx, otpPhone, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
