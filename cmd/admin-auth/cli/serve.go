package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	adminauth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/controller"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin auth HTTP API",
		Long: `Serve the admin auth HTTP API for a single local admin UI.

The API exposes the one admin session held by this process and requests carry
no credential of their own, so it listens on loopback only. Binding another
address requires http.allow_remote.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	viper.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(parent context.Context, cfg adminauth.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.observer.Start(ctx); err != nil {
		return err
	}
	a.observer.Subscribe(func(session *adminauth.AdminSession) {
		a.log.Info("admin session changed", "session", describeSession(session))
	})

	if !cfg.HTTP.IsLoopback() {
		a.log.Warn("admin auth API is reachable from the network; any client can read and end the admin session",
			"addr", cfg.HTTP.Addr)
	}

	server := newServer(a)

	errc := make(chan error, 1)
	go func() {
		a.log.Info("admin auth listening", "addr", cfg.HTTP.Addr, "prefix", cfg.HTTP.Prefix)
		errc <- server.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.log.Info("shutting down admin auth server")
	return server.ShutdownWithContext(shutdownCtx)
}

func newServer(a *app) *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               "admin-auth",
		DisableStartupMessage: true,
	})

	server.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	ctrl := controller.NewAdminAuthController(a.gate, a.authorizer, adminauth.NewSlogLogger(a.log))
	ctrl.Register(server.Group(a.cfg.HTTP.Prefix))

	return server
}
