package adminauth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCredential is returned for a wrong password or an unknown identity.
var ErrInvalidCredential = errors.New("invalid credential")

// ErrAccessDenied is returned when an authenticated identity is not allow-listed.
var ErrAccessDenied = errors.New("access denied: admin privileges required")

// ErrInactiveAccount is returned when the admin profile is deactivated or missing.
var ErrInactiveAccount = errors.New("admin account is inactive")

// ErrRateLimited matches every *RateLimitedError through errors.Is.
var ErrRateLimited = errors.New("too many failed login attempts")

// ErrNetwork marks transient transport or storage failures.
var ErrNetwork = errors.New("network error")

// ErrNoSession is returned when no identity is signed in.
var ErrNoSession = errors.New("no admin session")

// ErrNotFound is returned by password reset for unknown emails.
var ErrNotFound = errors.New("not found")

// ErrPermissionDenied is returned by a store that rejects a write.
var ErrPermissionDenied = errors.New("permission denied")

// ErrProfileNotFound is returned by ProfileStore.Get for absent records.
var ErrProfileNotFound = errors.New("admin profile not found")

// ErrLoginInProgress is returned when a login is submitted while another is outstanding.
var ErrLoginInProgress = errors.New("login already in progress")

// RateLimitedError is returned while the local lockout window is active.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: try again in %d seconds", ErrRateLimited.Error(), e.RemainingSeconds())
}

// Is makes errors.Is(err, ErrRateLimited) hold for any RateLimitedError.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RemainingSeconds rounds the remaining lockout up to whole seconds.
func (e *RateLimitedError) RemainingSeconds() int {
	if e == nil || e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Seconds()))
}

// FailureKind classifies login failures for the attempt tracker.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureInvalidCredential FailureKind = "invalid_credential"
	FailureAccessDenied      FailureKind = "access_denied"
	FailureInactiveAccount   FailureKind = "inactive_account"
	FailureRateLimited       FailureKind = "rate_limited"
	FailureNetwork           FailureKind = "network"
	FailureInProgress        FailureKind = "in_progress"
	FailureOther             FailureKind = "other"
)

// ClassifyFailure maps an error onto the login failure taxonomy.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, ErrLoginInProgress):
		return FailureInProgress
	case errors.Is(err, ErrInactiveAccount):
		return FailureInactiveAccount
	case errors.Is(err, ErrAccessDenied):
		return FailureAccessDenied
	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return FailureNetwork
	case errors.Is(err, ErrInvalidCredential):
		return FailureInvalidCredential
	default:
		return FailureOther
	}
}

// CountsTowardLockout reports whether the failure looks like a guessing attempt.
// Administrative deactivation and transient failures do not count.
func (k FailureKind) CountsTowardLockout() bool {
	return k == FailureInvalidCredential || k == FailureAccessDenied
}

// IsRateLimited returns the lockout error carried by err, if any.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// NetworkError wraps cause so that it matches ErrNetwork.
func NetworkError(cause error) error {
	if cause == nil || errors.Is(cause, ErrNetwork) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrNetwork, cause)
}

// credentialError normalizes a provider verification failure. Anything that
// is not a transport failure is reported as an invalid credential.
func credentialError(cause error) error {
	switch {
	case cause == nil:
		return ErrInvalidCredential
	case ClassifyFailure(cause) == FailureNetwork:
		return NetworkError(cause)
	case errors.Is(cause, ErrInvalidCredential):
		return cause
	default:
		return fmt.Errorf("%w: %w", ErrInvalidCredential, cause)
	}
}

// storeError normalizes a profile store failure for the login path.
func storeError(cause error) error {
	if errors.Is(cause, ErrPermissionDenied) || errors.Is(cause, ErrNetwork) {
		return cause
	}
	return NetworkError(cause)
}
