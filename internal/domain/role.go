package domain

import "sort"

// Role is a coarse capability label attached to a user.
type Role string

const (
	RoleJobFinder Role = "Job_finder"
	RoleRecruiter Role = "Recruiter"
	RoleAdmin     Role = "Admin"
)

// AllRoles contains all valid roles in order
var AllRoles = []Role{RoleJobFinder, RoleRecruiter, RoleAdmin}

// SelfSelectableRoles are the roles a user may assign to themselves.
// Admin is never self-assignable.
var SelfSelectableRoles = []Role{RoleJobFinder, RoleRecruiter}

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleJobFinder, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// IsSelfSelectable reports whether users may pick this role themselves.
func (r Role) IsSelfSelectable() bool {
	return r == RoleJobFinder || r == RoleRecruiter
}

func (r Role) String() string {
	return string(r)
}

// ParseRoles keeps the valid role names from values, deduplicated, in first-seen
// order. Unknown names are dropped.
func ParseRoles(values []string) []Role {
	roles := make([]Role, 0, len(values))
	for _, v := range values {
		role := Role(v)
		if role.IsValid() && !ContainsRole(roles, role) {
			roles = append(roles, role)
		}
	}
	return roles
}

// ParseSelfSelectableRoles is ParseRoles restricted to self-selectable roles.
func ParseSelfSelectableRoles(values []string) []Role {
	roles := make([]Role, 0, len(values))
	for _, role := range ParseRoles(values) {
		if role.IsSelfSelectable() {
			roles = append(roles, role)
		}
	}
	return roles
}

// ContainsRole reports whether role is present in roles.
func ContainsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// SortRoles returns roles in AllRoles order.
func SortRoles(roles []Role) []Role {
	out := append(make([]Role, 0, len(roles)), roles...)
	rank := func(r Role) int {
		for i, known := range AllRoles {
			if known == r {
				return i
			}
		}
		return len(AllRoles)
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// RoleStrings converts roles to their wire names.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
