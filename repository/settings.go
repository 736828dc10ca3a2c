package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	adminauth "github.com/goliatone/go-admin-auth"
)

// SettingsRepository implements adminauth.KeyValueStore on the
// client_settings table.
type SettingsRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ adminauth.KeyValueStore = (*SettingsRepository)(nil)

// NewSettingsRepository creates a new repository.
func NewSettingsRepository(db *bun.DB) *SettingsRepository {
	return &SettingsRepository{db: db, now: time.Now}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	model := new(ClientSettingModel)
	err := r.db.NewSelect().
		Model(model).
		Where(`"key" = ?`, key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return model.Value, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.NewInsert().
		Model(&ClientSettingModel{Key: key, Value: value, UpdatedAt: r.now()}).
		On(`CONFLICT ("key") DO UPDATE`).
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.NewDelete().
		Model((*ClientSettingModel)(nil)).
		Where(`"key" = ?`, key).
		Exec(ctx)
	return err
}
