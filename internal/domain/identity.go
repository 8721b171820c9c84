package domain

import "github.com/google/uuid"

// Identity is the verified subject of an access token.
type Identity struct {
	UserID uuid.UUID
	Roles  []Role
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role Role) bool {
	return i != nil && ContainsRole(i.Roles, role)
}
