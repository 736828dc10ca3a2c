package adminauth

import "strings"

// AdminRole is the administrative role stored on a profile.
type AdminRole string

const (
	// RoleSupport handles support tickets (lowest level)
	RoleSupport AdminRole = "support"
	// RoleModerator moderates records
	RoleModerator AdminRole = "moderator"
	// RoleAdmin is the default role given on first login
	RoleAdmin AdminRole = "admin"
	// RoleSuperAdmin implies every permission
	RoleSuperAdmin AdminRole = "super_admin"
)

// Permission names granted by default. Permissions are free-form strings;
// these are the ones the gate itself hands out.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
)

// DefaultRole is assigned to profiles created on first login.
const DefaultRole = RoleAdmin

// DefaultPermissions returns the permission set for profiles created on first login.
func DefaultPermissions() []string {
	return []string{PermissionRead, PermissionWrite}
}

// IsValid checks if the role is one of the predefined roles
func (r AdminRole) IsValid() bool {
	switch r {
	case RoleSupport, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsSuperAdmin reports whether the role bypasses permission checks.
func (r AdminRole) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// AllRoles returns all predefined roles from least to most privileged
func AllRoles() []AdminRole {
	return []AdminRole{
		RoleSupport,
		RoleModerator,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into an AdminRole
func ParseRole(s string) (AdminRole, bool) {
	role := AdminRole(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}
