package adminauth

import (
	"context"
	"errors"
	"time"
)

// AdminAuthorizer decides which authenticated identities may act as admins.
type AdminAuthorizer struct {
	provider     IdentityProvider
	profiles     ProfileStore
	allowList    AllowList
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

// AuthorizerOption customizes an AdminAuthorizer.
type AuthorizerOption func(*AdminAuthorizer)

// WithAuthorizerClock injects a custom clock (useful for tests).
func WithAuthorizerClock(clock func() time.Time) AuthorizerOption {
	return func(a *AdminAuthorizer) {
		if clock != nil {
			a.now = clock
		}
	}
}

// WithAuthorizerLogger overrides the logger.
func WithAuthorizerLogger(logger Logger) AuthorizerOption {
	return func(a *AdminAuthorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthorizerActivitySink sets the ActivitySink used to publish admin events.
func WithAuthorizerActivitySink(sink ActivitySink) AuthorizerOption {
	return func(a *AdminAuthorizer) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// NewAdminAuthorizer returns an authorizer bound to an immutable allow-list.
func NewAdminAuthorizer(provider IdentityProvider, profiles ProfileStore, allowList AllowList, opts ...AuthorizerOption) *AdminAuthorizer {
	a := &AdminAuthorizer{
		provider:     provider,
		profiles:     profiles,
		allowList:    allowList,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Provider returns the identity provider the authorizer talks to.
func (a *AdminAuthorizer) Provider() IdentityProvider {
	return a.provider
}

// IsAllowListed reports whether email may ever hold an admin profile.
func (a *AdminAuthorizer) IsAllowListed(email string) bool {
	return a.allowList.Contains(email)
}

// Login verifies the credential, enforces the allow-list and active status,
// and bootstraps the admin profile on first login.
func (a *AdminAuthorizer) Login(ctx context.Context, email, password string) (Identity, error) {
	identity, err := a.provider.VerifyPassword(ctx, email, password)
	if err != nil {
		err = credentialError(err)
		a.logger.Error("admin login verify password error", "email", email, "error", err)
		a.emit(ctx, ActivityEventLoginFailure, nil, email, map[string]any{
			"error":  err.Error(),
			"reason": string(ClassifyFailure(err)),
		})
		return nil, err
	}

	if identity == nil {
		a.logger.Error("admin login provider returned no identity", "email", email)
		return nil, ErrInvalidCredential
	}

	if !a.IsAllowListed(identity.Email()) {
		a.logger.Warn("admin login rejected, identity not allow-listed", "email", identity.Email())
		a.signOut(ctx, "access denied")
		a.emit(ctx, ActivityEventAccessDenied, identity, identity.Email(), nil)
		return nil, ErrAccessDenied
	}

	if err := a.reconcileProfile(ctx, identity); err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventLoginSuccess, identity, identity.Email(), nil)
	return identity, nil
}

func (a *AdminAuthorizer) reconcileProfile(ctx context.Context, identity Identity) error {
	now := a.now()

	profile, err := a.profiles.Get(ctx, identity.ID())
	switch {
	case errors.Is(err, ErrProfileNotFound):
		created := NewDefaultProfile(identity, now)
		if err := a.profiles.Put(ctx, identity.ID(), PatchFromProfile(created), false); err != nil {
			// without a profile the session could never be observed as valid
			err = storeError(err)
			a.logger.Error("admin profile create error", "id", identity.ID(), "error", err)
			a.signOut(ctx, "profile create failed")
			return err
		}
		a.logger.Info("admin profile created", "id", identity.ID(), "email", identity.Email(), "role", created.Role)
		a.emit(ctx, ActivityEventProfileCreated, identity, identity.Email(), map[string]any{
			"role":        string(created.Role),
			"permissions": created.Permissions,
		})
		return nil

	case err != nil:
		err = storeError(err)
		a.logger.Error("admin profile fetch error", "id", identity.ID(), "error", err)
		a.signOut(ctx, "profile fetch failed")
		return err

	case profile == nil || !profile.IsActive:
		a.logger.Warn("admin login rejected, account inactive", "id", identity.ID())
		a.signOut(ctx, "inactive account")
		a.emit(ctx, ActivityEventAccountInactive, identity, identity.Email(), nil)
		return ErrInactiveAccount
	}

	if err := a.profiles.Put(ctx, identity.ID(), LastLoginPatch(now), true); err != nil {
		a.logger.Warn("could not update admin last login", "id", identity.ID(), "error", err)
	}

	return nil
}

// Logout signs the current identity out.
func (a *AdminAuthorizer) Logout(ctx context.Context) error {
	identity := a.provider.CurrentIdentity()
	if err := a.provider.SignOut(ctx); err != nil {
		a.logger.Error("admin logout failed", "error", err)
		return NetworkError(err)
	}
	a.emit(ctx, ActivityEventLogout, identity, emailOf(identity), nil)
	return nil
}

// ValidateSession resolves the signed-in identity into an active admin session.
func (a *AdminAuthorizer) ValidateSession(ctx context.Context) (*AdminSession, error) {
	identity := a.provider.CurrentIdentity()
	if identity == nil {
		return nil, ErrNoSession
	}

	if !a.IsAllowListed(identity.Email()) {
		a.signOut(ctx, "access denied")
		a.emit(ctx, ActivityEventSessionInvalidated, identity, identity.Email(), map[string]any{
			"reason": string(FailureAccessDenied),
		})
		return nil, ErrAccessDenied
	}

	profile, err := a.profiles.Get(ctx, identity.ID())
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		a.logger.Error("validate session profile fetch error", "id", identity.ID(), "error", err)
		return nil, storeError(err)
	}

	if profile == nil || !profile.IsActive {
		a.signOut(ctx, "inactive account")
		a.emit(ctx, ActivityEventSessionInvalidated, identity, identity.Email(), map[string]any{
			"reason": string(FailureInactiveAccount),
		})
		return nil, ErrInactiveAccount
	}

	return &AdminSession{Identity: identity, Profile: profile}, nil
}

// ResolveSession resolves identity without creating a profile or signing out.
// It returns ErrAccessDenied, ErrProfileNotFound, ErrInactiveAccount or a store error.
func (a *AdminAuthorizer) ResolveSession(ctx context.Context, identity Identity) (*AdminSession, error) {
	if identity == nil {
		return nil, ErrNoSession
	}
	if !a.IsAllowListed(identity.Email()) {
		return nil, ErrAccessDenied
	}

	profile, err := a.profiles.Get(ctx, identity.ID())
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if !profile.IsActive {
		return nil, ErrInactiveAccount
	}

	return &AdminSession{Identity: identity, Profile: profile}, nil
}

// HasPermission reports whether identity may use permission. Super admins
// hold every permission; lookup failures deny.
func (a *AdminAuthorizer) HasPermission(ctx context.Context, identity Identity, permission string) bool {
	if identity == nil || !a.IsAllowListed(identity.Email()) {
		return false
	}

	profile, err := a.profiles.Get(ctx, identity.ID())
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			a.logger.Error("error checking permissions", "id", identity.ID(), "error", err)
		}
		return false
	}

	return profile.HasPermission(permission)
}

// SendPasswordReset dispatches a reset email for allow-listed addresses only.
func (a *AdminAuthorizer) SendPasswordReset(ctx context.Context, email string) error {
	if !a.IsAllowListed(email) {
		return ErrNotFound
	}

	if err := a.provider.SendPasswordReset(ctx, email); err != nil {
		a.logger.Error("password reset failed", "email", email, "error", err)
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return NetworkError(err)
	}

	a.emit(ctx, ActivityEventPasswordResetRequested, nil, email, nil)
	return nil
}

// CurrentSession summarizes the signed-in identity without any I/O. It
// returns nil when nobody is signed in or the identity is not allow-listed.
func (a *AdminAuthorizer) CurrentSession() *SessionInfo {
	identity := a.provider.CurrentIdentity()
	if identity == nil || !a.IsAllowListed(identity.Email()) {
		return nil
	}

	return &SessionInfo{
		ID:           identity.ID(),
		Email:        identity.Email(),
		CreatedAt:    identity.CreatedAt(),
		LastSignInAt: identity.LastSignInAt(),
	}
}

func (a *AdminAuthorizer) signOut(ctx context.Context, reason string) {
	if err := a.provider.SignOut(ctx); err != nil {
		a.logger.Error("forced sign out failed", "reason", reason, "error", err)
	}
}

func (a *AdminAuthorizer) emit(ctx context.Context, eventType ActivityEventType, identity Identity, email string, metadata map[string]any) {
	emitActivity(ctx, a.activitySink, a.logger, a.now(), ActivityEvent{
		EventType: eventType,
		Actor:     actorFromIdentity(identity),
		Email:     email,
		Metadata:  metadata,
	})
}

func emailOf(identity Identity) string {
	if identity == nil {
		return ""
	}
	return identity.Email()
}
