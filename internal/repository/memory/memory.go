// Package memory is a process-local store with the same atomicity contract
// as the postgres repositories. A single mutex serializes every operation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	roles   map[uuid.UUID][]domain.Role
	refresh map[uuid.UUID]*domain.RefreshToken
	otps    map[uuid.UUID]*domain.PhoneOtp
	jobs    []*domain.JobPosting
}

func NewStore() *Store {
	return &Store{
		users:   make(map[uuid.UUID]*domain.User),
		roles:   make(map[uuid.UUID][]domain.Role),
		refresh: make(map[uuid.UUID]*domain.RefreshToken),
		otps:    make(map[uuid.UUID]*domain.PhoneOtp),
	}
}

func NewRepositories(s *Store) *repository.Repositories {
	return &repository.Repositories{
		User:         &userRepository{s},
		Role:         &roleRepository{s},
		RefreshToken: &refreshTokenRepository{s},
		PhoneOtp:     &phoneOtpRepository{s},
		JobPosting:   &jobPostingRepository{s},
	}
}

// RefreshTokens returns copies of every stored refresh token of userID.
func (s *Store) RefreshTokens(userID uuid.UUID) []domain.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RefreshToken
	for _, t := range s.refresh {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out
}

// PhoneOtps returns copies of every stored code for phone.
func (s *Store) PhoneOtps(phone string) []domain.PhoneOtp {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PhoneOtp
	for _, o := range s.otps {
		if o.Phone == phone {
			out = append(out, *o)
		}
	}
	return out
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createUserLocked(user)
}

func (r *userRepository) CreateWithRoles(_ context.Context, user *domain.User, roles []domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.createUserLocked(user); err != nil {
		return err
	}
	r.s.addRolesLocked(user.ID, roles)
	return nil
}

func (s *Store) createUserLocked(user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if s.identityTakenLocked(user) {
		return domain.ErrIdentityTaken
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) identityTakenLocked(user *domain.User) bool {
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return true
		}
		if user.Phone != nil && u.Phone != nil && *u.Phone == *user.Phone {
			return true
		}
	}
	return false
}

func (r *userRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if phone == "" {
		return nil, domain.ErrNotFound
	}
	return r.FindByEmailOrPhone(ctx, "", phone)
}

func (r *userRepository) FindByEmailOrPhone(_ context.Context, email, phone string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var match *domain.User
	for _, u := range r.s.users {
		hit := (email != "" && u.Email != nil && *u.Email == email) ||
			(phone != "" && u.Phone != nil && *u.Phone == phone)
		if hit && (match == nil || u.CreatedAt.Before(match.CreatedAt)) {
			match = u
		}
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

type roleRepository struct{ s *Store }

func (r *roleRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.Role{}, r.s.roles[userID]...), nil
}

func (r *roleRepository) AddMany(_ context.Context, userID uuid.UUID, roles []domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.addRolesLocked(userID, roles)
	return nil
}

func (r *roleRepository) Replace(_ context.Context, userID uuid.UUID, roles []domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.roles, userID)
	r.s.addRolesLocked(userID, roles)
	return nil
}

func (s *Store) addRolesLocked(userID uuid.UUID, roles []domain.Role) {
	current := s.roles[userID]
	for _, role := range roles {
		if !domain.ContainsRole(current, role) {
			current = append(current, role)
		}
	}
	if len(current) > 0 {
		s.roles[userID] = current
	}
}

type refreshTokenRepository struct{ s *Store }

func (r *refreshTokenRepository) ReplaceActive(_ context.Context, token *domain.RefreshToken, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[token.UserID]; !ok {
		return domain.ErrNotFound
	}
	for _, t := range r.s.refresh {
		if t.TokenHash == token.TokenHash {
			return domain.ErrIdentityTaken
		}
	}
	for _, t := range r.s.refresh {
		if t.UserID == token.UserID && t.RevokedAt == nil {
			revokedAt := now
			t.RevokedAt = &revokedAt
		}
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	cp := *token
	r.s.refresh[token.ID] = &cp
	return nil
}

func (r *refreshTokenRepository) ConsumeActive(_ context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refresh {
		if t.TokenHash == tokenHash && t.IsActive(now) {
			revokedAt := now
			t.RevokedAt = &revokedAt
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *refreshTokenRepository) RevokeByHash(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	changed := false
	for _, t := range r.s.refresh {
		if t.TokenHash == tokenHash && t.IsActive(now) {
			revokedAt := now
			t.RevokedAt = &revokedAt
			changed = true
		}
	}
	return changed, nil
}

func (r *refreshTokenRepository) CountActive(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.refresh {
		if t.UserID == userID && t.IsActive(now) {
			n++
		}
	}
	return n, nil
}

func (r *refreshTokenRepository) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.refresh {
		if t.ExpiresAt.Before(before) {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

type phoneOtpRepository struct{ s *Store }

func (r *phoneOtpRepository) CountSince(_ context.Context, phone string, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, o := range r.s.otps {
		if o.Phone == phone && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *phoneOtpRepository) ReplaceUnconsumed(_ context.Context, otp *domain.PhoneOtp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.otps {
		if o.Phone == otp.Phone && o.ConsumedAt == nil {
			at := otp.CreatedAt
			o.ConsumedAt = &at
		}
	}
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}
	cp := *otp
	r.s.otps[otp.ID] = &cp
	return nil
}

func (r *phoneOtpRepository) LatestLive(_ context.Context, phone string, now time.Time) (*domain.PhoneOtp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var live []*domain.PhoneOtp
	for _, o := range r.s.otps {
		if o.Phone == phone && o.IsLive(now) {
			live = append(live, o)
		}
	}
	if len(live) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	cp := *live[0]
	return &cp, nil
}

func (r *phoneOtpRepository) ReserveAttempt(_ context.Context, id uuid.UUID, now time.Time, maxAttempts int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.otps[id]
	if !ok || !o.IsLive(now) || o.Attempts >= maxAttempts {
		return false, nil
	}
	o.Attempts++
	return true, nil
}

func (r *phoneOtpRepository) Consume(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.otps[id]
	if !ok || !o.IsLive(now) {
		return false, nil
	}
	consumedAt := now
	o.ConsumedAt = &consumedAt
	return true, nil
}

func (r *phoneOtpRepository) DeleteExpired(_ context.Context, now, createdBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, o := range r.s.otps {
		if o.ExpiresAt.Before(now) && o.CreatedAt.Before(createdBefore) {
			delete(r.s.otps, id)
			n++
		}
	}
	return n, nil
}

type jobPostingRepository struct{ s *Store }

func (r *jobPostingRepository) Create(_ context.Context, job *domain.JobPosting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	cp := *job
	r.s.jobs = append(r.s.jobs, &cp)
	return nil
}

func (r *jobPostingRepository) List(_ context.Context, limit, offset int) ([]*domain.JobPosting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.JobPosting, 0, len(r.s.jobs))
	for i := len(r.s.jobs) - 1; i >= 0; i-- {
		cp := *r.s.jobs[i]
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return []*domain.JobPosting{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
