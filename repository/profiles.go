package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	adminauth "github.com/goliatone/go-admin-auth"
)

// ProfileRepository implements adminauth.ProfileStore using Bun.
//
// Storage failures are reported as adminauth.ErrNetwork so callers treat a
// broken database like an unreachable backend.
type ProfileRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ adminauth.ProfileStore = (*ProfileRepository)(nil)

// NewProfileRepository creates a new repository.
func NewProfileRepository(db *bun.DB) *ProfileRepository {
	return &ProfileRepository{db: db, now: time.Now}
}

// Get implements adminauth.ProfileStore.
func (r *ProfileRepository) Get(ctx context.Context, identityID string) (*adminauth.AdminProfile, error) {
	model, err := r.get(ctx, r.db, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, adminauth.ErrProfileNotFound
		}
		return nil, adminauth.NetworkError(err)
	}
	return toProfile(model)
}

// Put implements adminauth.ProfileStore. Merging reads and writes in one
// transaction. Records whose role would not parse are rejected with
// ErrUnknownRole.
func (r *ProfileRepository) Put(ctx context.Context, identityID string, patch adminauth.ProfilePatch, merge bool) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		base := adminauth.AdminProfile{}
		if merge {
			existing, err := r.get(ctx, tx, identityID)
			switch {
			case err == nil:
				profile, err := toProfile(existing)
				if err != nil {
					return err
				}
				base = *profile
			case errors.Is(err, sql.ErrNoRows):
				return adminauth.ErrProfileNotFound
			default:
				return err
			}
		}

		next := patch.Apply(base)
		next.ID = identityID
		role, err := parseRole(identityID, string(next.Role))
		if err != nil {
			return err
		}
		next.Role = role

		model := fromProfile(next)
		model.UpdatedAt = r.now()

		_, err = tx.NewInsert().
			Model(model).
			On("CONFLICT (id) DO UPDATE").
			Set("email = EXCLUDED.email").
			Set("role = EXCLUDED.role").
			Set("permissions = EXCLUDED.permissions").
			Set("is_active = EXCLUDED.is_active").
			Set("created_at = EXCLUDED.created_at").
			Set("last_login = EXCLUDED.last_login").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, adminauth.ErrProfileNotFound), errors.Is(err, ErrUnknownRole):
		return err
	default:
		return adminauth.NetworkError(err)
	}
}

// List returns every stored profile ordered by email.
func (r *ProfileRepository) List(ctx context.Context) ([]*adminauth.AdminProfile, error) {
	var models []AdminProfileModel
	err := r.db.NewSelect().
		Model(&models).
		Order("email ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, adminauth.NetworkError(err)
	}

	out := make([]*adminauth.AdminProfile, len(models))
	for i := range models {
		profile, err := toProfile(&models[i])
		if err != nil {
			return nil, err
		}
		out[i] = profile
	}
	return out, nil
}

func (r *ProfileRepository) get(ctx context.Context, db bun.IDB, identityID string) (*AdminProfileModel, error) {
	model := new(AdminProfileModel)
	err := db.NewSelect().
		Model(model).
		Where("id = ?", identityID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return model, nil
}
