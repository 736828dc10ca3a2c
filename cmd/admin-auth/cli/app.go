package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/uptrace/bun"

	adminauth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/activitymap"
	"github.com/goliatone/go-admin-auth/provider/identitytoolkit"
	"github.com/goliatone/go-admin-auth/repository"
)

// app holds the wired gate for one process.
type app struct {
	cfg        adminauth.Config
	log        *slog.Logger
	db         *bun.DB
	repos      repository.Manager
	provider   adminauth.IdentityProvider
	authorizer *adminauth.AdminAuthorizer
	gate       *adminauth.LoginGate
	observer   *adminauth.SessionObserver
	closers    []func()
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// activityLogger writes every admin activity event as a normalized record.
func activityLogger(log *slog.Logger) adminauth.ActivitySink {
	return adminauth.ActivitySinkFunc(func(ctx context.Context, event adminauth.ActivityEvent) error {
		record := activitymap.Normalize(event)
		log.InfoContext(ctx, "activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_id", record.ObjectID,
			"channel", record.Channel,
			"reason", record.Reason,
			"metadata", record.Metadata,
		)
		return nil
	})
}

// newApp opens the database, applies migrations and wires the gate against
// the Identity Toolkit provider.
func newApp(ctx context.Context, cfg adminauth.Config) (*app, error) {
	log := newLogger(os.Stderr, cfg.LogLevel)

	db, err := repository.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	applied, err := repository.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.Info("applied migrations", "migrations", applied)
	}

	pcfg := identitytoolkit.FromAdminConfig(cfg.IdentityToolkit)
	pcfg.Logger = adminauth.NewSlogLogger(log.With("component", "identitytoolkit"))
	provider, err := identitytoolkit.New(pcfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repos := repository.NewRepositoryManager(db)
	repos.MustValidate()

	a := wire(cfg, log, provider, repos.Profiles(), repos.Settings())
	a.db = db
	a.repos = repos
	a.closers = append(a.closers, provider.Close, func() { _ = db.Close() })
	return a, nil
}

func wire(cfg adminauth.Config, log *slog.Logger, provider adminauth.IdentityProvider, profiles adminauth.ProfileStore, settings adminauth.KeyValueStore) *app {
	logger := adminauth.NewSlogLogger(log)
	sink := activityLogger(log)

	authorizer := adminauth.NewAdminAuthorizer(provider, profiles, cfg.BuildAllowList(),
		adminauth.WithAuthorizerLogger(logger),
		adminauth.WithAuthorizerActivitySink(sink),
	)
	observer := adminauth.NewSessionObserver(authorizer)
	tracker := adminauth.NewLoginAttemptTracker(adminauth.WithTrackerLogger(logger))
	gate := adminauth.NewLoginGate(authorizer, tracker,
		adminauth.WithGateRememberMe(adminauth.NewRememberMeStore(settings)),
		adminauth.WithGateObserver(observer),
		adminauth.WithGateLogger(logger),
		adminauth.WithGateActivitySink(sink),
	)

	return &app{
		cfg:        cfg,
		log:        log,
		provider:   provider,
		authorizer: authorizer,
		gate:       gate,
		observer:   observer,
	}
}

func (a *app) Close() {
	a.observer.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func describeSession(session *adminauth.AdminSession) string {
	if session == nil {
		return "signed out"
	}
	return fmt.Sprintf("%s (%s, role=%s)", session.Identity.Email(), session.Identity.ID(), session.Profile.Role)
}
