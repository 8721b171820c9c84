package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID    string   `json:"id"`
	Email *string  `json:"email"`
	Phone *string  `json:"phone"`
	Roles []string `json:"roles"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IsNewUser    bool   `json:"isNewUser"`
}

type TokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Roles        []string `json:"roles"`
}

type Job struct {
	ID          string          `json:"id"`
	RecruiterID string          `json:"recruiterId"`
	Title       string          `json:"title"`
	Details     json.RawMessage `json:"details"`
}

// APIError is a non-success response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// RegisterUser creates a new email account with the given self-selected roles
func (c *APIClient) RegisterUser(baseName string, roles ...string) (*AuthResponse, error) {
	body := map[string]any{
		"email":    fmt.Sprintf("%s_%d@sim.jober.local", baseName, time.Now().UnixNano()%1000000),
		"password": "testpassword123",
		"roles":    roles,
	}
	var result AuthResponse
	if err := c.do(http.MethodPost, "/auth/register", body, "", http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("register failed: %w", err)
	}
	return &result, nil
}

func (c *APIClient) Login(email, password string) (*AuthResponse, error) {
	var result AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(http.MethodPost, "/auth/login", body, "", http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &result, nil
}

// SendOTP requests a code and returns it when the server echoes it (non-production only)
func (c *APIClient) SendOTP(phone string) (string, error) {
	var result struct {
		OTP string `json:"otp"`
	}
	if err := c.do(http.MethodPost, "/auth/send-otp", map[string]string{"phone": phone}, "", http.StatusOK, &result); err != nil {
		return "", fmt.Errorf("send otp failed: %w", err)
	}
	return result.OTP, nil
}

func (c *APIClient) VerifyOTP(phone, code string) (*AuthResponse, error) {
	var result AuthResponse
	body := map[string]string{"phone": phone, "otp": code}
	if err := c.do(http.MethodPost, "/auth/verify-otp", body, "", http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("verify otp failed: %w", err)
	}
	return &result, nil
}

func (c *APIClient) Refresh(refreshToken string) (*TokenResponse, error) {
	var result TokenResponse
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(http.MethodPost, "/auth/refresh", body, "", http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}
	return &result, nil
}

func (c *APIClient) Logout(refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(http.MethodPost, "/auth/logout", body, "", http.StatusOK, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

func (c *APIClient) SelectRoles(token string, roles ...string) error {
	body := map[string]any{"roles": roles}
	if err := c.do(http.MethodPost, "/user/roles", body, token, http.StatusOK, nil); err != nil {
		return fmt.Errorf("select roles failed: %w", err)
	}
	return nil
}

func (c *APIClient) CreateJob(token, title string, details map[string]any) (*Job, error) {
	body := map[string]any{"title": title}
	for k, v := range details {
		body[k] = v
	}
	var result struct {
		Job Job `json:"job"`
	}
	if err := c.do(http.MethodPost, "/job", body, token, http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("create job failed: %w", err)
	}
	return &result.Job, nil
}

func (c *APIClient) ListJobs(token string) ([]Job, error) {
	var result struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(http.MethodGet, "/job", nil, token, http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("list jobs failed: %w", err)
	}
	return result.Jobs, nil
}

// HTTP helpers

func (c *APIClient) do(method, path string, body any, token string, wantStatus int, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
