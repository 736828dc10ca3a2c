// Package adminauth gates access to an administrative back office.
//
// An identity provider proves who is signing in. adminauth decides whether
// that identity may act as an admin:
//   - AllowList is a fixed set of emails. Identities outside it are signed
//     out as soon as they are seen, whether at login or on a session change.
//   - ProfileStore holds one AdminProfile per identity id with a role,
//     permissions and an active flag. The first allow-listed login creates a
//     default profile. Deactivated profiles are signed out.
//
// Login flow:
//   - LoginGate serializes submissions, consults the LoginAttemptTracker and
//     delegates to AdminAuthorizer.Login. Three counted failures lock the gate
//     for sixty seconds. The lock is resolved against the clock on access.
//   - RememberMeStore keeps the last email for the login form; it never
//     stores a password and is never consulted for authorization.
//
// Session observation:
//   - SessionObserver re-derives the admin session from the provider's change
//     stream and republishes only the latest resolution, so a slow profile
//     fetch never overwrites a newer sign-out.
//
// Activity sinks:
//   - ActivitySink receives login, denial, profile creation, logout and
//     session invalidation events. Sinks run best-effort (errors are logged)
//     so forwarding to a database or queue never blocks a login.
package adminauth
