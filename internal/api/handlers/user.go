package handlers

import (
	"net/http"
	"time"

	"github.com/dom/jober-auth/internal/api/middleware"
	"github.com/dom/jober-auth/internal/api/respond"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/service"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

type UserResponse struct {
	ID        string     `json:"id"`
	Email     *string    `json:"email"`
	Phone     *string    `json:"phone"`
	Roles     []string   `json:"roles"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func newUserResponse(user *domain.User, roles []domain.Role) UserResponse {
	return UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Phone: user.Phone,
		Roles: domain.RoleStrings(roles),
	}
}

type SelectRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,max=10,dive,max=32"`
}

var rolesMessages = map[string]string{
	"roles": "At least one valid role is required",
}

type RolesResponse struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type SelectRolesResponse struct {
	OK      bool     `json:"ok"`
	Roles   []string `json:"roles"`
	Message string   `json:"message"`
}

// GetProfile returns the stored user with the roles carried by the token.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respond.Error(w, h.logger, "user.GetProfile", domain.ErrUnauthenticated)
		return
	}

	user, err := h.userService.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		respond.Error(w, h.logger, "user.GetProfile", err)
		return
	}

	resp := newUserResponse(user, identity.Roles)
	resp.CreatedAt = &user.CreatedAt
	resp.UpdatedAt = &user.UpdatedAt
	respond.JSON(w, http.StatusOK, map[string]UserResponse{"user": resp})
}

func (h *UserHandler) GetRoles(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respond.Error(w, h.logger, "user.GetRoles", domain.ErrUnauthenticated)
		return
	}

	respond.JSON(w, http.StatusOK, RolesResponse{
		UserID: identity.UserID.String(),
		Roles:  domain.RoleStrings(identity.Roles),
	})
}

// SelectRoles replaces the caller's roles. The new set shows up in tokens
// issued after this call.
func (h *UserHandler) SelectRoles(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respond.Error(w, h.logger, "user.SelectRoles", domain.ErrUnauthenticated)
		return
	}

	var req SelectRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.logger, "user.SelectRoles", err)
		return
	}
	if err := validateRequest(&req, rolesMessages); err != nil {
		respond.Error(w, h.logger, "user.SelectRoles", err)
		return
	}

	roles, err := h.userService.SelectRoles(r.Context(), identity.UserID, req.Roles)
	if err != nil {
		respond.Error(w, h.logger, "user.SelectRoles", err)
		return
	}

	respond.JSON(w, http.StatusOK, SelectRolesResponse{
		OK:      true,
		Roles:   domain.RoleStrings(roles),
		Message: "Roles updated successfully",
	})
}
