package handlers

import (
	"net/http"

	"github.com/dom/jober-auth/internal/api/respond"
	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg, logger: logger}
}

type RegisterRequest struct {
	Email    string   `json:"email" validate:"omitempty,max=254"`
	Phone    string   `json:"phone" validate:"omitempty,max=32"`
	Password string   `json:"password"`
	Roles    []string `json:"roles" validate:"omitempty,max=10,dive,max=32"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"omitempty,max=254"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	OTP   string `json:"otp" validate:"required,max=16"`
}

var identityMessages = map[string]string{
	"email": "Email is too long",
	"phone": "Phone number is too long",
	"roles": "Too many roles",
}

var refreshMessages = map[string]string{
	"refreshToken": "refreshToken is required",
}

var otpMessages = map[string]string{
	"phone.required": "Phone number is required",
	"phone":          "Phone number is too long",
	"otp.required":   "OTP code is required",
	"otp":            "Invalid or expired OTP code",
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type OTPLoginResponse struct {
	AuthResponse
	IsNewUser bool `json:"isNewUser"`
}

type RefreshResponse struct {
	Success      bool     `json:"success"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Roles        []string `json:"roles"`
}

type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

func newAuthResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		User:         newUserResponse(result.User, result.Tokens.Roles),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.logger, "auth.Register", err)
		return
	}
	if err := validateRequest(&req, identityMessages); err != nil {
		respond.Error(w, h.logger, "auth.Register", err)
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		respond.Error(w, h.logger, "auth.Register", err)
		return
	}

	respond.JSON(w, http.StatusCreated, newAuthResponse(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.logger, "auth.Login", err)
		return
	}
	if err := validateRequest(&req, identityMessages); err != nil {
		respond.Error(w, h.logger, "auth.Login", err)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		respond.Error(w, h.logger, "auth.Login", err)
		return
	}

	respond.JSON(w, http.StatusOK, newAuthResponse(result))
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.logger, "auth.SendOTP", err)
		return
	}
	if err := validateRequest(&req, otpMessages); err != nil {
		respond.Error(w, h.logger, "auth.SendOTP", err)
		return
	}

	code, err := h.authService.SendOTP(r.Context(), req.Phone)
	if err != nil {
		respond.Error(w, h.logger, "auth.SendOTP", err)
		return
	}

	resp := SendOTPResponse{
		Success: true,
		Message: "OTP has been sent successfully",
	}
	if !h.cfg.IsProduction() {
		resp.OTP = code
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.logger, "auth.VerifyOTP", err)
		return
	}
	if err := validateRequest(&req, otpMessages); err != nil {
		respond.Error(w, h.logger, "auth.VerifyOTP", err)
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		respond.Error(w, h.logger, "auth.VerifyOTP", err)
		return
	}

	respond.JSON(w, http.StatusOK, OTPLoginResponse{
		AuthResponse: newAuthResponse(result),
		IsNewUser:    result.IsNewUser,
	})
}

// Refresh rotates the presented refresh token. A missing or unparsable body
// is reported as a missing token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	_ = decodeJSON(w, r, &req)
	if err := validateRequest(&req, refreshMessages); err != nil {
		respond.Error(w, h.logger, "auth.Refresh", err)
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respond.Error(w, h.logger, "auth.Refresh", err)
		return
	}

	respond.JSON(w, http.StatusOK, RefreshResponse{
		Success:      true,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Roles:        domain.RoleStrings(tokens.Roles),
	})
}

// Logout revokes the presented refresh token. The response does not reveal
// whether the token was active.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	_ = decodeJSON(w, r, &req)
	if err := validateRequest(&req, refreshMessages); err != nil {
		respond.Error(w, h.logger, "auth.Logout", err)
		return
	}

	if _, err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		respond.Error(w, h.logger, "auth.Logout", err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
