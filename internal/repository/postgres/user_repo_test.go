package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository/postgres"
	"github.com/dom/jober-auth/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *domain.User
		wantErr error
	}{
		{
			name: "email user",
			user: &domain.User{
				ID:           uuid.New(),
				Email:        strPtr("first@example.com"),
				PasswordHash: strPtr("hashedpassword"),
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			},
		},
		{
			name: "phone only user without password",
			user: &domain.User{
				ID:        uuid.New(),
				Phone:     strPtr("+85512345678"),
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
		},
		{
			name: "duplicate email",
			user: &domain.User{
				ID:        uuid.New(),
				Email:     strPtr("first@example.com"), // Same as above
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			wantErr: domain.ErrIdentityTaken,
		},
		{
			name: "duplicate phone",
			user: &domain.User{
				ID:        uuid.New(),
				Email:     strPtr("other@example.com"),
				Phone:     strPtr("+85512345678"),
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			wantErr: domain.ErrIdentityTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUserRepository_CreateWithRoles(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Email: strPtr("recruiter@example.com"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repos.User.CreateWithRoles(ctx, user, []domain.Role{domain.RoleRecruiter, domain.RoleJobFinder}))

	roles, err := repos.Role.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	testutil.AssertSameRoles(t, []domain.Role{domain.RoleRecruiter, domain.RoleJobFinder}, roles)

	t.Run("role failure rolls back the user", func(t *testing.T) {
		broken := &domain.User{ID: uuid.New(), Email: strPtr("broken@example.com"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
		// exceeds the role column width
		err := repos.User.CreateWithRoles(ctx, broken, []domain.Role{domain.Role("Recruiter_with_a_very_long_name")})
		require.Error(t, err)

		_, err = repos.User.GetByID(ctx, broken.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		retry := &domain.User{ID: uuid.New(), Email: strPtr("broken@example.com"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
		assert.NoError(t, repos.User.CreateWithRoles(ctx, retry, []domain.Role{domain.RoleRecruiter}))
	})

	t.Run("duplicate identity", func(t *testing.T) {
		dup := &domain.User{ID: uuid.New(), Email: strPtr("recruiter@example.com"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
		err := repos.User.CreateWithRoles(ctx, dup, []domain.Role{domain.RoleJobFinder})
		assert.ErrorIs(t, err, domain.ErrIdentityTaken)

		roles, err := repos.Role.ListByUser(ctx, dup.ID)
		require.NoError(t, err)
		assert.Empty(t, roles)
	})
}

func TestUserRepository_Lookups(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithEmail("lookup@example.com").
		WithPhone("+85598765432").
		Build(t, repos)

	got, err := repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.HasPassword())

	got, err = repos.User.GetByPhone(ctx, "+85598765432")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	tests := []struct {
		name    string
		email   string
		phone   string
		wantErr error
	}{
		{name: "by email", email: "lookup@example.com"},
		{name: "by phone", phone: "+85598765432"},
		{name: "either matches", email: "nobody@example.com", phone: "+85598765432"},
		{name: "no match", email: "nobody@example.com", wantErr: domain.ErrNotFound},
		{name: "no identifiers", wantErr: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repos.User.FindByEmailOrPhone(ctx, tt.email, tt.phone)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
		})
	}

	_, err = repos.User.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoleRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, repos)

	roles, err := repos.Role.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)

	require.NoError(t, repos.Role.AddMany(ctx, user.ID, []domain.Role{domain.RoleJobFinder}))
	// duplicates are ignored
	require.NoError(t, repos.Role.AddMany(ctx, user.ID, []domain.Role{domain.RoleJobFinder, domain.RoleAdmin}))

	roles, err = repos.Role.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	testutil.AssertSameRoles(t, []domain.Role{domain.RoleJobFinder, domain.RoleAdmin}, roles)

	require.NoError(t, repos.Role.Replace(ctx, user.ID, []domain.Role{domain.RoleRecruiter}))
	roles, err = repos.Role.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleRecruiter}, roles)
}
