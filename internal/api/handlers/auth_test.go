package handlers_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		request        map[string]any
		setup          func(*testing.T, *testutil.TestServer)
		expectedStatus int
		expectedError  string
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful registration",
			request: map[string]any{
				"email":    " NewUser@Example.com",
				"password": "password123",
				"roles":    []string{"Recruiter", "Admin"},
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result testutil.AuthResponse
				testutil.AssertJSONResponse(t, resp, &result)
				require.NotNil(t, result.User.Email)
				assert.Equal(t, "newuser@example.com", *result.User.Email)
				assert.Equal(t, []string{"Recruiter"}, result.User.Roles)
				assert.NotEmpty(t, result.AccessToken)
				assert.NotEmpty(t, result.RefreshToken)
			},
		},
		{
			name:           "missing identifier",
			request:        map[string]any{"password": "password123"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Email or phone is required",
		},
		{
			name:           "short password",
			request:        map[string]any{"phone": "+85512345678", "password": "short"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Password must be at least 8 characters",
		},
		{
			name:    "duplicate email",
			request: map[string]any{"email": "existing@example.com", "password": "password123"},
			setup: func(t *testing.T, ts *testutil.TestServer) {
				testutil.NewUserBuilder().WithEmail("existing@example.com").Build(t, ts.Repos)
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "Email or phone already in use",
		},
		{
			name:           "roles not an array",
			request:        map[string]any{"email": "x@example.com", "password": "password123", "roles": "Recruiter"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testutil.NewTestServer(t)
			if tt.setup != nil {
				tt.setup(t, ts)
			}

			resp := testutil.PostJSON(t, ts.APIURL("/auth/register"), tt.request)
			defer resp.Body.Close()

			if tt.expectedError != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedError)
				return
			}
			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	ts := testutil.NewTestServer(t)

	for _, body := range []string{"", "not json", "[1,2]"} {
		resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Invalid JSON body")
		resp.Body.Close()
	}
}

func TestAuthHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, password := testutil.NewUserBuilder().
		WithEmail("login@example.com").
		WithRoles(domain.RoleJobFinder).
		Build(t, ts.Repos)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "successful login",
			request:        map[string]string{"email": "login@example.com", "password": password},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			request:        map[string]string{"email": "login@example.com", "password": "wrongpassword"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid credentials",
		},
		{
			name:           "unknown user",
			request:        map[string]string{"email": "nobody@example.com", "password": password},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid credentials",
		},
		{
			name:           "missing password",
			request:        map[string]string{"email": "login@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.PostJSON(t, ts.APIURL("/auth/login"), tt.request)
			defer resp.Body.Close()

			if tt.expectedError != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedError)
				return
			}

			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			var result testutil.AuthResponse
			testutil.AssertJSONResponse(t, resp, &result)
			assert.Equal(t, []string{"Job_finder"}, result.User.Roles)
			assert.NotEmpty(t, result.AccessToken)
		})
	}
}

func TestAuthHandler_RefreshRotation(t *testing.T) {
	ts := testutil.NewTestServer(t)
	auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := testutil.PostJSON(t, ts.APIURL("/auth/refresh"), map[string]string{"refreshToken": auth.RefreshToken})
	var rotated struct {
		Success      bool     `json:"success"`
		AccessToken  string   `json:"accessToken"`
		RefreshToken string   `json:"refreshToken"`
		Roles        []string `json:"roles"`
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &rotated)
	resp.Body.Close()
	assert.True(t, rotated.Success)
	assert.NotEqual(t, auth.RefreshToken, rotated.RefreshToken)
	assert.NotNil(t, rotated.Roles)

	// replaying the consumed token fails
	resp = testutil.PostJSON(t, ts.APIURL("/auth/refresh"), map[string]string{"refreshToken": auth.RefreshToken})
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Invalid or expired refresh token")
	resp.Body.Close()

	resp = testutil.PostJSON(t, ts.APIURL("/auth/refresh"), map[string]string{})
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "refreshToken is required")
	resp.Body.Close()
}

func TestAuthHandler_Logout(t *testing.T) {
	ts := testutil.NewTestServer(t)
	auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	for i := 0; i < 2; i++ {
		resp := testutil.PostJSON(t, ts.APIURL("/auth/logout"), map[string]string{"refreshToken": auth.RefreshToken})
		var body map[string]bool
		testutil.AssertStatusCode(t, resp, http.StatusOK)
		testutil.AssertJSONResponse(t, resp, &body)
		resp.Body.Close()
		assert.True(t, body["ok"], "logout is idempotent")
	}

	resp := testutil.PostJSON(t, ts.APIURL("/auth/refresh"), map[string]string{"refreshToken": auth.RefreshToken})
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Invalid or expired refresh token")
	resp.Body.Close()

	resp, err := http.Post(ts.APIURL("/auth/logout"), "application/json", bytes.NewBufferString("garbage"))
	require.NoError(t, err)
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "refreshToken is required")
	resp.Body.Close()
}

func TestAuthHandler_OTPLogin(t *testing.T) {
	ts := testutil.NewTestServer(t)
	phone := "+85512345678"

	resp := testutil.PostJSON(t, ts.APIURL("/auth/send-otp"), map[string]string{"phone": phone})
	var sent struct {
		Success bool   `json:"success"`
		OTP     string `json:"otp"`
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &sent)
	resp.Body.Close()
	assert.True(t, sent.Success)
	assert.Equal(t, ts.Sender.Last(phone), sent.OTP, "code is echoed outside production")

	resp = testutil.PostJSON(t, ts.APIURL("/auth/verify-otp"), map[string]string{"phone": phone, "otp": sent.OTP})
	var result testutil.AuthResponse
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &result)
	resp.Body.Close()
	assert.True(t, result.IsNewUser)
	assert.NotEmpty(t, result.AccessToken)
	require.NotNil(t, result.User.Phone)
	assert.Equal(t, phone, *result.User.Phone)
	assert.Empty(t, result.User.Roles)

	resp = testutil.PostJSON(t, ts.APIURL("/auth/verify-otp"), map[string]string{"phone": phone, "otp": sent.OTP})
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Invalid or expired OTP code")
	resp.Body.Close()
}

func TestAuthHandler_SendOTP_RateLimited(t *testing.T) {
	ts := testutil.NewTestServer(t)
	phone := "+85512345678"

	for i := 0; i < 3; i++ {
		resp := testutil.PostJSON(t, ts.APIURL("/auth/send-otp"), map[string]string{"phone": phone})
		testutil.AssertStatusCode(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp := testutil.PostJSON(t, ts.APIURL("/auth/send-otp"), map[string]string{"phone": phone})
	testutil.AssertErrorResponse(t, resp, http.StatusTooManyRequests, "Too many OTP requests")
	resp.Body.Close()

	resp = testutil.PostJSON(t, ts.APIURL("/auth/send-otp"), map[string]string{})
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Phone number is required")
	resp.Body.Close()
}

func TestAuthHandler_VerifyOTP_AttemptsExceeded(t *testing.T) {
	ts := testutil.NewTestServer(t)
	phone := "+85512345678"

	resp := testutil.PostJSON(t, ts.APIURL("/auth/send-otp"), map[string]string{"phone": phone})
	resp.Body.Close()
	wrong := "000000"
	if ts.Sender.Last(phone) == wrong {
		wrong = "111111"
	}

	for i := 0; i < 3; i++ {
		resp = testutil.PostJSON(t, ts.APIURL("/auth/verify-otp"), map[string]string{"phone": phone, "otp": wrong})
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Invalid or expired OTP code")
		resp.Body.Close()
	}

	resp = testutil.PostJSON(t, ts.APIURL("/auth/verify-otp"), map[string]string{"phone": phone, "otp": ts.Sender.Last(phone)})
	testutil.AssertErrorResponse(t, resp, http.StatusTooManyRequests, "Maximum verification attempts exceeded")
	resp.Body.Close()

	resp = testutil.PostJSON(t, ts.APIURL("/auth/verify-otp"), map[string]string{"phone": phone})
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "OTP code is required")
	resp.Body.Close()
}
