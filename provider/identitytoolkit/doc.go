// Package identitytoolkit implements adminauth.IdentityProvider on top of the
// Google Identity Toolkit REST API (the backend behind Firebase Auth email and
// password sign-in).
//
// The provider keeps a single signed-in identity per process. Sign-in calls
// accounts:signInWithPassword, decodes the returned ID token and, when a JWKS
// URL is configured, verifies its signature, issuer and audience. Password
// resets go through accounts:sendOobCode.
//
// Identity change listeners are notified in order on the goroutine that caused
// the change. A listener may call SignOut; the resulting notification is queued
// and delivered after the listener returns.
package identitytoolkit
