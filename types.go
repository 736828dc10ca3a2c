package adminauth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity is an authenticated principal issued by the identity provider.
// It never carries credential material.
type Identity interface {
	ID() string
	Email() string
	CreatedAt() time.Time
	LastSignInAt() time.Time
}

// IdentityListener receives the current identity, or nil when signed out.
type IdentityListener func(identity Identity)

// Unsubscribe cancels a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// IdentityProvider verifies credentials and owns the authenticated identity.
type IdentityProvider interface {
	VerifyPassword(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChanged delivers the current identity immediately and then
	// every subsequent change.
	OnIdentityChanged(listener IdentityListener) Unsubscribe
	CurrentIdentity() Identity
	SendPasswordReset(ctx context.Context, email string) error
}

// ProfileStore is a document store of AdminProfile records keyed by identity id.
type ProfileStore interface {
	// Get returns ErrProfileNotFound when no record exists.
	Get(ctx context.Context, identityID string) (*AdminProfile, error)
	// Put applies patch onto the stored record when merge is true, otherwise
	// replaces the record with patch applied onto an empty profile. Merging
	// into an absent record returns ErrProfileNotFound and writes nothing.
	Put(ctx context.Context, identityID string, patch ProfilePatch, merge bool) error
}

// NewIdentity returns a plain Identity value.
func NewIdentity(id, email string, createdAt, lastSignInAt time.Time) Identity {
	return basicIdentity{
		id:           id,
		email:        email,
		createdAt:    createdAt,
		lastSignInAt: lastSignInAt,
	}
}

type basicIdentity struct {
	id           string
	email        string
	createdAt    time.Time
	lastSignInAt time.Time
}

func (b basicIdentity) ID() string              { return b.id }
func (b basicIdentity) Email() string           { return b.email }
func (b basicIdentity) CreatedAt() time.Time    { return b.createdAt }
func (b basicIdentity) LastSignInAt() time.Time { return b.lastSignInAt }

var _ Identity = basicIdentity{}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }

func (d defLogger) print(level, msg string, args []any) {
	line := "[" + level + "] ADMIN-AUTH " + strings.TrimRight(msg, "\n")
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			line += fmt.Sprintf(" %v", args[i])
		}
	}
	fmt.Println(line)
}

// NewSlogLogger adapts a *slog.Logger. A nil logger uses slog.Default.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
