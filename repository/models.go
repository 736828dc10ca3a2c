package repository

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/uptrace/bun"

	adminauth "github.com/goliatone/go-admin-auth"
)

// AdminProfileModel is the Bun model for admin profiles.
type AdminProfileModel struct {
	bun.BaseModel `bun:"table:admin_profiles"`

	ID          string    `bun:"id,pk"`
	Email       string    `bun:"email,notnull"`
	Role        string    `bun:"role,notnull"`
	Permissions []string  `bun:"permissions"`
	IsActive    bool      `bun:"is_active,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	LastLogin   time.Time `bun:"last_login,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// ClientSettingModel is a single client-side preference.
type ClientSettingModel struct {
	bun.BaseModel `bun:"table:client_settings"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// ErrUnknownRole is returned for stored profiles whose role is not one of
// adminauth.AllRoles.
var ErrUnknownRole = errors.New("unknown admin role")

func parseRole(id, raw string) (adminauth.AdminRole, error) {
	role, ok := adminauth.ParseRole(raw)
	if !ok {
		return "", fmt.Errorf("%w %q for profile %s (want one of %v)", ErrUnknownRole, raw, id, adminauth.AllRoles())
	}
	return role, nil
}

func toProfile(m *AdminProfileModel) (*adminauth.AdminProfile, error) {
	role, err := parseRole(m.ID, m.Role)
	if err != nil {
		return nil, err
	}

	perms := slices.Clone(m.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return &adminauth.AdminProfile{
		ID:          m.ID,
		Email:       m.Email,
		Role:        role,
		Permissions: perms,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		LastLogin:   m.LastLogin,
	}, nil
}

func fromProfile(p adminauth.AdminProfile) *AdminProfileModel {
	perms := slices.Clone(p.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return &AdminProfileModel{
		ID:          p.ID,
		Email:       p.Email,
		Role:        string(p.Role),
		Permissions: perms,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		LastLogin:   p.LastLogin,
	}
}
