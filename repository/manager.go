package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"

	adminauth "github.com/goliatone/go-admin-auth"
)

// Manager exposes all repositories over one database handle.
type Manager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Profiles() *ProfileRepository
	Settings() *SettingsRepository
	DB() *bun.DB
}

type mngr struct {
	db       *bun.DB
	profiles *ProfileRepository
	settings *SettingsRepository
}

// NewRepositoryManager wires every repository to db.
func NewRepositoryManager(db *bun.DB) Manager {
	return &mngr{
		db:       db,
		profiles: NewProfileRepository(db),
		settings: NewSettingsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.settings == nil {
		return errors.New("repository settings should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Profiles() *ProfileRepository {
	return m.profiles
}

func (m mngr) Settings() *SettingsRepository {
	return m.settings
}

func (m mngr) DB() *bun.DB {
	return m.db
}

// OpenSQLite opens a Bun handle on the sqlite file at dsn.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	// sqlite serializes writers
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate applies every pending embedded migration and returns the names of
// the migrations that ran.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		return nil, nil
	}

	return migrationNames(group), nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}
	if group.IsZero() {
		return nil, nil
	}

	return migrationNames(group), nil
}

func migrationNames(group *migrate.MigrationGroup) []string {
	names := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		name := m.Name
		if m.Comment != "" {
			name += "_" + m.Comment
		}
		names = append(names, name)
	}
	return names
}

func newMigrator(ctx context.Context, db *bun.DB) (*migrate.Migrator, error) {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(adminauth.GetMigrationsFS()); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return migrator, nil
}
