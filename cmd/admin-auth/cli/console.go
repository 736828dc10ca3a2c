package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	adminauth "github.com/goliatone/go-admin-auth"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive admin session",
		Long: `Start an interactive admin session. The console keeps one signed-in admin and
prints every session change reported by the identity provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			c := newConsole(a, cmd.InOrStdin(), cmd.OutOrStdout())
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				c.readPassword = func() (string, error) {
					pw, err := term.ReadPassword(int(f.Fd()))
					fmt.Fprintln(c.out)
					return string(pw), err
				}
			}
			return c.run(ctx)
		},
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type console struct {
	app          *app
	in           *bufio.Scanner
	out          io.Writer
	readPassword func() (string, error)
}

func newConsole(a *app, in io.Reader, out io.Writer) *console {
	c := &console{
		app: a,
		in:  bufio.NewScanner(in),
		out: &syncWriter{w: out},
	}
	// without a terminal the password is the next input line
	c.readPassword = func() (string, error) {
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return c.in.Text(), nil
	}
	return c
}

func (c *console) run(ctx context.Context) error {
	if err := c.app.observer.Start(ctx); err != nil {
		return err
	}
	unsubscribe := c.app.observer.Subscribe(func(session *adminauth.AdminSession) {
		fmt.Fprintf(c.out, "[session] %s\n", describeSession(session))
	})
	defer unsubscribe()

	if hint, ok := c.app.gate.RememberedLogin(ctx); ok {
		fmt.Fprintf(c.out, "remembered login: %s\n", hint.Email)
	}

	for {
		fmt.Fprint(c.out, "admin> ")
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}

		fields := strings.Fields(c.in.Text())
		if len(fields) == 0 {
			continue
		}

		quit, err := c.exec(ctx, fields[0], fields[1:])
		if err != nil {
			fmt.Fprintf(c.out, "error: %s\n", describeError(err))
			if fields[0] == "login" && adminauth.ClassifyFailure(err).CountsTowardLockout() {
				fmt.Fprintf(c.out, "%d attempts remaining\n", c.app.gate.Attempts().RemainingAttempts)
			}
		}
		if quit {
			return nil
		}
	}
}

func (c *console) exec(ctx context.Context, command string, args []string) (bool, error) {
	switch command {
	case "login":
		return false, c.login(ctx, args)
	case "logout":
		if err := c.app.gate.Logout(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "signed out")
	case "whoami":
		session, err := c.app.authorizer.ValidateSession(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s permissions=%s\n", describeSession(session), strings.Join(session.Profile.Permissions, ","))
	case "can":
		if len(args) != 1 {
			return false, errors.New("usage: can <permission>")
		}
		identity := c.app.provider.CurrentIdentity()
		if identity == nil {
			return false, adminauth.ErrNoSession
		}
		fmt.Fprintf(c.out, "%s: %t\n", args[0], c.app.authorizer.HasPermission(ctx, identity, args[0]))
	case "reset":
		if len(args) != 1 {
			return false, errors.New("usage: reset <email>")
		}
		if err := c.app.authorizer.SendPasswordReset(ctx, args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "password reset sent to %s\n", args[0])
	case "attempts":
		snap := c.app.gate.Attempts()
		fmt.Fprintf(c.out, "state=%s failures=%d remaining=%d\n", snap.State, snap.Failures, snap.RemainingAttempts)
	case "help":
		fmt.Fprintln(c.out, "commands: login <email> [--remember], logout, whoami, can <permission>, reset <email>, attempts, quit")
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", command)
	}
	return false, nil
}

func (c *console) login(ctx context.Context, args []string) error {
	req := adminauth.LoginRequest{}
	for _, arg := range args {
		if arg == "--remember" {
			req.RememberMe = true
			continue
		}
		req.Email = arg
	}
	if req.Email == "" {
		if hint, ok := c.app.gate.RememberedLogin(ctx); ok {
			req.Email = hint.Email
			req.RememberMe = true
		}
	}
	if req.Email == "" {
		return errors.New("usage: login <email> [--remember]")
	}

	fmt.Fprint(c.out, "password: ")
	password, err := c.readPassword()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	req.Password = password

	identity, err := c.app.gate.Login(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signed in as %s\n", identity.Email())
	return nil
}

func describeError(err error) string {
	if rl, ok := adminauth.IsRateLimited(err); ok {
		return fmt.Sprintf("too many failed attempts, try again in %ds", rl.RemainingSeconds())
	}
	switch adminauth.ClassifyFailure(err) {
	case adminauth.FailureInvalidCredential:
		return "invalid email or password"
	case adminauth.FailureAccessDenied:
		return "access denied: admin privileges required"
	case adminauth.FailureInactiveAccount:
		return "admin account is inactive"
	case adminauth.FailureNetwork:
		return "identity service unreachable, try again"
	}
	return err.Error()
}
