package adminauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adminauth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/adminauthtest"
)

var testStart = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type authorizerFixture struct {
	authorizer *adminauth.AdminAuthorizer
	provider   *adminauthtest.FakeIdentityProvider
	profiles   *adminauth.MemoryProfileStore
	clock      *adminauthtest.Clock
	sink       *adminauthtest.RecordingSink
}

func newAuthorizerFixture(t *testing.T, profiles ...adminauth.AdminProfile) *authorizerFixture {
	t.Helper()

	f := &authorizerFixture{
		provider: adminauthtest.NewFakeIdentityProvider().
			AddAccount("uid-a", "a@x.com", "right").
			AddAccount("uid-boss", "boss@x.com", "right").
			AddAccount("uid-mallory", "mallory@x.com", "right"),
		profiles: adminauth.NewMemoryProfileStore(profiles...),
		clock:    adminauthtest.NewClock(testStart),
		sink:     &adminauthtest.RecordingSink{},
	}
	f.authorizer = adminauth.NewAdminAuthorizer(f.provider, f.profiles,
		adminauth.NewAllowList("a@x.com", "Boss@X.com"),
		adminauth.WithAuthorizerClock(f.clock.Now),
		adminauth.WithAuthorizerLogger(adminauth.NopLogger()),
		adminauth.WithAuthorizerActivitySink(f.sink),
	)
	return f
}

func TestLoginFirstTimeCreatesDefaultProfile(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	identity, err := f.authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)
	assert.Equal(t, "uid-a", identity.ID())

	require.Equal(t, 1, f.profiles.Len())
	profile, err := f.profiles.Get(ctx, "uid-a")
	require.NoError(t, err)
	assert.Equal(t, "uid-a", profile.ID)
	assert.Equal(t, "a@x.com", profile.Email)
	assert.Equal(t, adminauth.RoleAdmin, profile.Role)
	assert.ElementsMatch(t, []string{"read", "write"}, profile.Permissions)
	assert.True(t, profile.IsActive)
	assert.Equal(t, testStart, profile.CreatedAt)
	assert.Equal(t, testStart, profile.LastLogin)

	assert.Equal(t, 0, f.provider.SignOutCalls())
	assert.Equal(t, []adminauth.ActivityEventType{
		adminauth.ActivityEventProfileCreated,
		adminauth.ActivityEventLoginSuccess,
	}, f.sink.Types())
}

func TestLoginExistingProfileUpdatesLastLoginOnly(t *testing.T) {
	created := testStart.Add(-30 * 24 * time.Hour)
	f := newAuthorizerFixture(t, adminauth.AdminProfile{
		ID:          "uid-a",
		Email:       "a@x.com",
		Role:        adminauth.RoleModerator,
		Permissions: []string{"read", "reports"},
		IsActive:    true,
		CreatedAt:   created,
		LastLogin:   created,
	})
	ctx := context.Background()

	f.clock.Advance(time.Minute)
	_, err := f.authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)

	profile, err := f.profiles.Get(ctx, "uid-a")
	require.NoError(t, err)
	assert.Equal(t, adminauth.RoleModerator, profile.Role)
	assert.Equal(t, []string{"read", "reports"}, profile.Permissions)
	assert.Equal(t, created, profile.CreatedAt)
	assert.Equal(t, testStart.Add(time.Minute), profile.LastLogin)
	assert.Equal(t, 1, f.profiles.Len())
}

func TestLoginAllowListIsCaseInsensitive(t *testing.T) {
	f := newAuthorizerFixture(t)

	_, err := f.authorizer.Login(context.Background(), "boss@x.com", "right")
	require.NoError(t, err)
	assert.True(t, f.authorizer.IsAllowListed("  BOSS@x.COM "))
}

func TestLoginInvalidCredentialHasNoSideEffects(t *testing.T) {
	f := newAuthorizerFixture(t)

	_, err := f.authorizer.Login(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, adminauth.ErrInvalidCredential)
	assert.Equal(t, 0, f.provider.SignOutCalls())
	assert.Equal(t, 0, f.profiles.Len())
	assert.Nil(t, f.provider.CurrentIdentity())
}

func TestLoginNotAllowListedSignsOutExactlyOnce(t *testing.T) {
	f := newAuthorizerFixture(t)

	identity, err := f.authorizer.Login(context.Background(), "mallory@x.com", "right")
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, adminauth.ErrAccessDenied)
	assert.Equal(t, 1, f.provider.SignOutCalls())
	assert.Nil(t, f.provider.CurrentIdentity())
	assert.Equal(t, 0, f.profiles.Len())
	assert.Equal(t, []adminauth.ActivityEventType{adminauth.ActivityEventAccessDenied}, f.sink.Types())
}

func TestLoginInactiveProfileSignsOutExactlyOnce(t *testing.T) {
	f := newAuthorizerFixture(t, adminauth.AdminProfile{
		ID:       "uid-a",
		Email:    "a@x.com",
		Role:     adminauth.RoleAdmin,
		IsActive: false,
	})

	_, err := f.authorizer.Login(context.Background(), "a@x.com", "right")
	assert.ErrorIs(t, err, adminauth.ErrInactiveAccount)
	assert.Equal(t, 1, f.provider.SignOutCalls())
	assert.Nil(t, f.provider.CurrentIdentity())
}

func TestLoginNetworkErrorFromProvider(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.provider.SetVerifyError(adminauth.NetworkError(context.DeadlineExceeded))

	_, err := f.authorizer.Login(context.Background(), "a@x.com", "right")
	assert.ErrorIs(t, err, adminauth.ErrNetwork)
	assert.Equal(t, adminauth.FailureNetwork, adminauth.ClassifyFailure(err))
	assert.Equal(t, 0, f.provider.SignOutCalls())
}

func TestLoginUnknownProviderErrorIsInvalidCredential(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.provider.SetVerifyError(assert.AnError)

	_, err := f.authorizer.Login(context.Background(), "a@x.com", "right")
	assert.ErrorIs(t, err, adminauth.ErrInvalidCredential)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoginLastLoginWriteFailureIsSwallowed(t *testing.T) {
	provider := adminauthtest.NewFakeIdentityProvider().AddAccount("uid-a", "a@x.com", "right")
	store := new(MockProfileStore)
	store.On("Get", mock.Anything, "uid-a").Return(&adminauth.AdminProfile{ID: "uid-a", Email: "a@x.com", Role: adminauth.RoleAdmin, IsActive: true}, nil)
	store.On("Put", mock.Anything, "uid-a", mock.Anything, true).Return(adminauth.ErrPermissionDenied)

	authorizer := adminauth.NewAdminAuthorizer(provider, store, adminauth.NewAllowList("a@x.com"),
		adminauth.WithAuthorizerLogger(adminauth.NopLogger()),
	)

	identity, err := authorizer.Login(context.Background(), "a@x.com", "right")
	require.NoError(t, err)
	assert.Equal(t, "uid-a", identity.ID())
	assert.Equal(t, 0, provider.SignOutCalls())
	store.AssertExpectations(t)
}

func TestLoginProfileFetchFailureFailsClosed(t *testing.T) {
	provider := adminauthtest.NewFakeIdentityProvider().AddAccount("uid-a", "a@x.com", "right")
	store := new(MockProfileStore)
	store.On("Get", mock.Anything, "uid-a").Return(nil, adminauth.NetworkError(assert.AnError))

	authorizer := adminauth.NewAdminAuthorizer(provider, store, adminauth.NewAllowList("a@x.com"),
		adminauth.WithAuthorizerLogger(adminauth.NopLogger()),
	)

	_, err := authorizer.Login(context.Background(), "a@x.com", "right")
	assert.ErrorIs(t, err, adminauth.ErrNetwork)
	assert.False(t, adminauth.ClassifyFailure(err).CountsTowardLockout())
	assert.Equal(t, 1, provider.SignOutCalls())
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginProfileCreateDeniedFailsClosed(t *testing.T) {
	provider := adminauthtest.NewFakeIdentityProvider().AddAccount("uid-a", "a@x.com", "right")
	store := new(MockProfileStore)
	store.On("Get", mock.Anything, "uid-a").Return(nil, adminauth.ErrProfileNotFound)
	store.On("Put", mock.Anything, "uid-a", mock.Anything, false).Return(adminauth.ErrPermissionDenied)

	authorizer := adminauth.NewAdminAuthorizer(provider, store, adminauth.NewAllowList("a@x.com"),
		adminauth.WithAuthorizerLogger(adminauth.NopLogger()),
	)

	_, err := authorizer.Login(context.Background(), "a@x.com", "right")
	assert.ErrorIs(t, err, adminauth.ErrPermissionDenied)
	assert.Equal(t, 1, provider.SignOutCalls())
	assert.Nil(t, provider.CurrentIdentity())
}

func TestLogout(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	_, err := f.authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)

	require.NoError(t, f.authorizer.Logout(ctx))
	assert.Nil(t, f.provider.CurrentIdentity())
	assert.Contains(t, f.sink.Types(), adminauth.ActivityEventLogout)

	f.provider.SetSignOutError(assert.AnError)
	assert.ErrorIs(t, f.authorizer.Logout(ctx), adminauth.ErrNetwork)
}

func TestValidateSession(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	_, err := f.authorizer.ValidateSession(ctx)
	assert.ErrorIs(t, err, adminauth.ErrNoSession)

	_, err = f.authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)

	session, err := f.authorizer.ValidateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-a", session.Identity.ID())
	assert.Equal(t, adminauth.RoleAdmin, session.Profile.Role)
	assert.True(t, session.HasPermission("write"))
}

func TestValidateSessionDeactivatedOutOfBand(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	_, err := f.authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)

	inactive := false
	require.NoError(t, f.profiles.Put(ctx, "uid-a", adminauth.ProfilePatch{IsActive: &inactive}, true))

	_, err = f.authorizer.ValidateSession(ctx)
	assert.ErrorIs(t, err, adminauth.ErrInactiveAccount)
	assert.Equal(t, 1, f.provider.SignOutCalls())
	assert.Nil(t, f.provider.CurrentIdentity())
}

func TestValidateSessionNonAdminIdentity(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.provider.SetIdentity(adminauth.NewIdentity("uid-mallory", "mallory@x.com", testStart, testStart))

	_, err := f.authorizer.ValidateSession(context.Background())
	assert.ErrorIs(t, err, adminauth.ErrAccessDenied)
	assert.Equal(t, 1, f.provider.SignOutCalls())
}

func TestValidateSessionMissingProfile(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.provider.SetIdentity(adminauth.NewIdentity("uid-a", "a@x.com", testStart, testStart))

	_, err := f.authorizer.ValidateSession(context.Background())
	assert.ErrorIs(t, err, adminauth.ErrInactiveAccount)
	assert.Equal(t, 0, f.profiles.Len())
}

func TestValidateSessionStoreErrorKeepsSession(t *testing.T) {
	provider := adminauthtest.NewFakeIdentityProvider()
	provider.SetIdentity(adminauth.NewIdentity("uid-a", "a@x.com", testStart, testStart))
	store := new(MockProfileStore)
	store.On("Get", mock.Anything, "uid-a").Return(nil, assert.AnError)

	authorizer := adminauth.NewAdminAuthorizer(provider, store, adminauth.NewAllowList("a@x.com"),
		adminauth.WithAuthorizerLogger(adminauth.NopLogger()),
	)

	_, err := authorizer.ValidateSession(context.Background())
	assert.ErrorIs(t, err, adminauth.ErrNetwork)
	assert.Equal(t, 0, provider.SignOutCalls())
	assert.NotNil(t, provider.CurrentIdentity())
}

func TestHasPermission(t *testing.T) {
	f := newAuthorizerFixture(t,
		adminauth.AdminProfile{ID: "uid-boss", Email: "boss@x.com", Role: adminauth.RoleSuperAdmin, IsActive: true},
		adminauth.AdminProfile{ID: "uid-a", Email: "a@x.com", Role: adminauth.RoleAdmin, Permissions: []string{"read"}, IsActive: true},
	)
	ctx := context.Background()

	boss := adminauth.NewIdentity("uid-boss", "boss@x.com", testStart, testStart)
	admin := adminauth.NewIdentity("uid-a", "a@x.com", testStart, testStart)
	stranger := adminauth.NewIdentity("uid-mallory", "mallory@x.com", testStart, testStart)

	assert.True(t, f.authorizer.HasPermission(ctx, boss, "anything-never-granted"))
	assert.False(t, f.authorizer.HasPermission(ctx, admin, "anything-never-granted"))
	assert.True(t, f.authorizer.HasPermission(ctx, admin, "read"))
	assert.False(t, f.authorizer.HasPermission(ctx, stranger, "read"))
	assert.False(t, f.authorizer.HasPermission(ctx, nil, "read"))
}

func TestSendPasswordReset(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.authorizer.SendPasswordReset(ctx, "a@x.com"))
	assert.ErrorIs(t, f.authorizer.SendPasswordReset(ctx, "mallory@x.com"), adminauth.ErrNotFound)
	assert.Equal(t, []string{"a@x.com"}, f.provider.ResetRequests())

	f.provider.SetResetError(assert.AnError)
	assert.ErrorIs(t, f.authorizer.SendPasswordReset(ctx, "a@x.com"), adminauth.ErrNetwork)

	f.provider.SetResetError(adminauth.ErrNotFound)
	assert.ErrorIs(t, f.authorizer.SendPasswordReset(ctx, "a@x.com"), adminauth.ErrNotFound)
}

func TestCurrentSession(t *testing.T) {
	f := newAuthorizerFixture(t)

	assert.Nil(t, f.authorizer.CurrentSession())

	f.provider.SetIdentity(adminauth.NewIdentity("uid-mallory", "mallory@x.com", testStart, testStart))
	assert.Nil(t, f.authorizer.CurrentSession())

	f.provider.SetIdentity(adminauth.NewIdentity("uid-a", "a@x.com", testStart, testStart.Add(time.Hour)))
	info := f.authorizer.CurrentSession()
	require.NotNil(t, info)
	assert.Equal(t, "uid-a", info.ID)
	assert.Equal(t, testStart.Add(time.Hour), info.LastSignInAt)
}

func TestActivitySinkErrorsDoNotFailLogin(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.sink.Err = assert.AnError

	_, err := f.authorizer.Login(context.Background(), "a@x.com", "right")
	require.NoError(t, err)

	events := f.sink.Events()
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, testStart, e.OccurredAt)
	}
}

// vanishingStore reports a profile once, as if it were deleted right after
// the read.
type vanishingStore struct {
	*adminauth.MemoryProfileStore
	ghost *adminauth.AdminProfile
}

func (s *vanishingStore) Get(ctx context.Context, id string) (*adminauth.AdminProfile, error) {
	if s.ghost != nil {
		p := s.ghost
		s.ghost = nil
		return p, nil
	}
	return s.MemoryProfileStore.Get(ctx, id)
}

func TestLoginAfterProfileDeletedMidLoginBootstrapsAgain(t *testing.T) {
	provider := adminauthtest.NewFakeIdentityProvider().AddAccount("uid-a", "a@x.com", "right")
	store := &vanishingStore{
		MemoryProfileStore: adminauth.NewMemoryProfileStore(),
		ghost:              &adminauth.AdminProfile{ID: "uid-a", Email: "a@x.com", Role: adminauth.RoleModerator, IsActive: true},
	}
	authorizer := adminauth.NewAdminAuthorizer(provider, store, adminauth.NewAllowList("a@x.com"),
		adminauth.WithAuthorizerLogger(adminauth.NopLogger()),
	)
	ctx := context.Background()

	_, err := authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len(), "last login touch must not create a stub")

	_, err = authorizer.Login(ctx, "a@x.com", "right")
	require.NoError(t, err)

	profile, err := store.Get(ctx, "uid-a")
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
	assert.Equal(t, adminauth.RoleAdmin, profile.Role)
}

func TestMemoryProfileStoreMergeRequiresRecord(t *testing.T) {
	store := adminauth.NewMemoryProfileStore()

	err := store.Put(context.Background(), "uid-a", adminauth.LastLoginPatch(testStart), true)
	assert.ErrorIs(t, err, adminauth.ErrProfileNotFound)
	assert.Equal(t, 0, store.Len())
}
