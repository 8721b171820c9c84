package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CaptureSender records delivered codes instead of sending them.
type CaptureSender struct {
	mu    sync.Mutex
	codes map[string][]string
	Err   error
}

func NewCaptureSender() *CaptureSender {
	return &CaptureSender{codes: make(map[string][]string)}
}

func (s *CaptureSender) Send(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.codes[phone] = append(s.codes[phone], code)
	return nil
}

// Last returns the most recent code delivered to phone.
func (s *CaptureSender) Last(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.codes[phone]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email    string
	phone    string
	password string
	roles    []domain.Role
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		email:    fmt.Sprintf("user_%s@example.com", uuid.New().String()[:8]),
		password: "testpassword123",
	}
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPhone(phone string) *UserBuilder {
	b.phone = phone
	return b
}

// WithPassword sets the password; empty means a password-less user
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) WithRoles(roles ...domain.Role) *UserBuilder {
	b.roles = roles
	return b
}

// Build creates the user in the store and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, repos *repository.Repositories) (*domain.User, string) {
	t.Helper()

	user := &domain.User{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if b.email != "" {
		email := b.email
		user.Email = &email
	}
	if b.phone != "" {
		phone := b.phone
		user.Phone = &phone
	}
	if b.password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		hash := string(hashedPassword)
		user.PasswordHash = &hash
	}

	ctx := context.Background()
	if err := repos.User.Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if len(b.roles) > 0 {
		if err := repos.Role.AddMany(ctx, user.ID, b.roles); err != nil {
			t.Fatalf("failed to assign roles: %v", err)
		}
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID    string   `json:"id"`
		Email *string  `json:"email"`
		Phone *string  `json:"phone"`
		Roles []string `json:"roles"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IsNewUser    bool   `json:"isNewUser"`
}

// BuildAndAuthenticate registers the user via the API and returns the auth response
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) AuthResponse {
	t.Helper()

	reqBody := map[string]any{
		"email":    b.email,
		"password": b.password,
		"roles":    domain.RoleStrings(b.roles),
	}
	if b.phone != "" {
		reqBody["phone"] = b.phone
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status code: %d: %s", resp.StatusCode, raw)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return authResp
}

// CreateAuthenticatedRequest builds a request with an optional bearer token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body any, token string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// PostJSON sends body to url and returns the response
func PostJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
