package service

import (
	"strings"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/metrics"
	"go.uber.org/zap"
)

// Guard establishes identity from bearer credentials and enforces role
// requirements.
type Guard struct {
	tokens  *TokenService
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewGuard(tokens *TokenService, logger *zap.Logger, rec *metrics.Recorder) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{tokens: tokens, logger: logger.Named("guard"), metrics: rec}
}

// Identify parses an Authorization header value of the form "Bearer <token>".
// Every rejected token fails with the same domain.ErrUnauthenticated.
func (g *Guard) Identify(authorization string) (*domain.Identity, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		g.metrics.AuthorizationDenied("missing_token")
		return nil, domain.ErrUnauthenticated
	}

	identity, err := g.tokens.VerifyAccess(token)
	if err != nil {
		g.metrics.AuthorizationDenied("invalid_token")
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

// Require fails with domain.ErrForbidden unless identity holds one of allowed.
// Admin satisfies any requirement that names Recruiter or JobFinder.
func (g *Guard) Require(identity *domain.Identity, allowed ...domain.Role) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	for _, role := range expandAllowed(allowed) {
		if identity.HasRole(role) {
			return nil
		}
	}
	g.metrics.AuthorizationDenied("forbidden")
	return &domain.Error{
		Kind:    domain.KindForbidden,
		Message: "Forbidden: Requires one of these roles: " + strings.Join(domain.RoleStrings(allowed), ", "),
	}
}

// RequireAnyRole fails with domain.ErrRoleRequired when identity has no roles.
func (g *Guard) RequireAnyRole(identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	if len(identity.Roles) == 0 {
		g.metrics.AuthorizationDenied("no_role")
		return domain.ErrRoleRequired
	}
	return nil
}

func expandAllowed(allowed []domain.Role) []domain.Role {
	out := append([]domain.Role(nil), allowed...)
	if (domain.ContainsRole(out, domain.RoleRecruiter) || domain.ContainsRole(out, domain.RoleJobFinder)) &&
		!domain.ContainsRole(out, domain.RoleAdmin) {
		out = append(out, domain.RoleAdmin)
	}
	return out
}

func bearerToken(authorization string) (string, bool) {
	parts := strings.Split(authorization, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
