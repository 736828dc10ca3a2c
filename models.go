package adminauth

import (
	"slices"
	"time"
)

// AdminProfile is the authorization record for an identity.
type AdminProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        AdminRole `json:"role"`
	Permissions []string  `json:"permissions"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	LastLogin   time.Time `json:"last_login"`
}

// HasPermission reports whether the profile grants permission.
// Super admins are granted everything.
func (p *AdminProfile) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	if p.Role.IsSuperAdmin() {
		return true
	}
	return slices.Contains(p.Permissions, permission)
}

// Clone returns a deep copy of the profile.
func (p *AdminProfile) Clone() *AdminProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Permissions = slices.Clone(p.Permissions)
	return &c
}

// NewDefaultProfile builds the record created on a first allow-listed login.
func NewDefaultProfile(identity Identity, now time.Time) AdminProfile {
	return AdminProfile{
		ID:          identity.ID(),
		Email:       identity.Email(),
		Role:        DefaultRole,
		Permissions: DefaultPermissions(),
		IsActive:    true,
		CreatedAt:   now,
		LastLogin:   now,
	}
}

// ProfilePatch is a partial profile update. Set fields win, nil fields keep
// the stored value.
type ProfilePatch struct {
	Email       *string
	Role        *AdminRole
	Permissions *[]string
	IsActive    *bool
	CreatedAt   *time.Time
	LastLogin   *time.Time
}

// PatchFromProfile returns a patch that sets every field of p.
func PatchFromProfile(p AdminProfile) ProfilePatch {
	perms := slices.Clone(p.Permissions)
	return ProfilePatch{
		Email:       &p.Email,
		Role:        &p.Role,
		Permissions: &perms,
		IsActive:    &p.IsActive,
		CreatedAt:   &p.CreatedAt,
		LastLogin:   &p.LastLogin,
	}
}

// LastLoginPatch only touches LastLogin.
func LastLoginPatch(at time.Time) ProfilePatch {
	return ProfilePatch{LastLogin: &at}
}

// IsEmpty reports whether the patch sets no field.
func (p ProfilePatch) IsEmpty() bool {
	return p.Email == nil &&
		p.Role == nil &&
		p.Permissions == nil &&
		p.IsActive == nil &&
		p.CreatedAt == nil &&
		p.LastLogin == nil
}

// Apply returns base with the patch applied. base is not modified.
func (p ProfilePatch) Apply(base AdminProfile) AdminProfile {
	out := base
	out.Permissions = slices.Clone(base.Permissions)

	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Role != nil {
		out.Role = *p.Role
	}
	if p.Permissions != nil {
		out.Permissions = slices.Clone(*p.Permissions)
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	if p.CreatedAt != nil {
		out.CreatedAt = *p.CreatedAt
	}
	if p.LastLogin != nil {
		out.LastLogin = *p.LastLogin
	}

	return out
}

// AdminSession is a resolved identity and its profile.
type AdminSession struct {
	Identity Identity
	Profile  *AdminProfile
}

// HasPermission reports whether the session's profile grants permission.
func (s *AdminSession) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	return s.Profile.HasPermission(permission)
}

// SessionInfo is a synchronous summary of the signed-in admin identity.
type SessionInfo struct {
	ID           string    `json:"uid"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"creation_time"`
	LastSignInAt time.Time `json:"last_sign_in_time"`
}
