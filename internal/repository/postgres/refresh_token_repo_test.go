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

func newRefreshToken(userID uuid.UUID, hash string, now time.Time) *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
		CreatedAt: now,
	}
}

func TestRefreshTokenRepository_ReplaceActive(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, repos)
	now := time.Now()

	require.NoError(t, repos.RefreshToken.ReplaceActive(ctx, newRefreshToken(user.ID, "first", now), now))
	require.NoError(t, repos.RefreshToken.ReplaceActive(ctx, newRefreshToken(user.ID, "second", now), now))

	count, err := repos.RefreshToken.CountActive(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repos.RefreshToken.ConsumeActive(ctx, "first", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repos.RefreshToken.ReplaceActive(ctx, newRefreshToken(uuid.New(), "orphan", now), now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshTokenRepository_ReplaceActive_Concurrent(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, repos)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repos.RefreshToken.ReplaceActive(ctx, newRefreshToken(user.ID, uuid.NewString(), now), now))
		}()
	}
	wg.Wait()

	count, err := repos.RefreshToken.CountActive(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "concurrent issuance must leave one active session")
}

func TestRefreshTokenRepository_ConsumeActive(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, repos)
	now := time.Now()

	require.NoError(t, repos.RefreshToken.ReplaceActive(ctx, newRefreshToken(user.ID, "hash", now), now))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repos.RefreshToken.ConsumeActive(ctx, "hash", now)
			if err == nil {
				assert.Equal(t, user.ID, got.UserID)
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "a refresh token is consumed exactly once")
}

func TestRefreshTokenRepository_RevokeAndPurge(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, repos)
	now := time.Now()

	require.NoError(t, repos.RefreshToken.ReplaceActive(ctx, newRefreshToken(user.ID, "hash", now), now))

	changed, err := repos.RefreshToken.RevokeByHash(ctx, "hash", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repos.RefreshToken.RevokeByHash(ctx, "hash", now)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := repos.RefreshToken.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repos.RefreshToken.PurgeExpired(ctx, now.Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
