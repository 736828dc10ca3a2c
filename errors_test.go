package adminauth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	adminauth "github.com/goliatone/go-admin-auth"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected adminauth.FailureKind
		counts   bool
	}{
		{name: "nil", err: nil, expected: adminauth.FailureNone},
		{name: "invalid credential", err: adminauth.ErrInvalidCredential, expected: adminauth.FailureInvalidCredential, counts: true},
		{name: "wrapped invalid credential", err: fmt.Errorf("verify: %w", adminauth.ErrInvalidCredential), expected: adminauth.FailureInvalidCredential, counts: true},
		{name: "access denied", err: adminauth.ErrAccessDenied, expected: adminauth.FailureAccessDenied, counts: true},
		{name: "inactive", err: adminauth.ErrInactiveAccount, expected: adminauth.FailureInactiveAccount},
		{name: "rate limited", err: &adminauth.RateLimitedError{Remaining: time.Second}, expected: adminauth.FailureRateLimited},
		{name: "network", err: adminauth.NetworkError(errors.New("dial tcp")), expected: adminauth.FailureNetwork},
		{name: "deadline", err: context.DeadlineExceeded, expected: adminauth.FailureNetwork},
		{name: "canceled", err: context.Canceled, expected: adminauth.FailureNetwork},
		{name: "in progress", err: adminauth.ErrLoginInProgress, expected: adminauth.FailureInProgress},
		{name: "other", err: errors.New("boom"), expected: adminauth.FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := adminauth.ClassifyFailure(tt.err)
			assert.Equal(t, tt.expected, kind)
			assert.Equal(t, tt.counts, kind.CountsTowardLockout())
		})
	}
}

func TestRateLimitedErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("login: %w", &adminauth.RateLimitedError{Remaining: 44500 * time.Millisecond})

	assert.ErrorIs(t, err, adminauth.ErrRateLimited)
	assert.Contains(t, err.Error(), "try again in 45 seconds")

	rl, ok := adminauth.IsRateLimited(err)
	assert.True(t, ok)
	assert.Equal(t, 45, rl.RemainingSeconds())

	_, ok = adminauth.IsRateLimited(adminauth.ErrRateLimited)
	assert.False(t, ok)
}

func TestNetworkError(t *testing.T) {
	assert.NoError(t, adminauth.NetworkError(nil))

	cause := errors.New("connection reset")
	err := adminauth.NetworkError(cause)
	assert.ErrorIs(t, err, adminauth.ErrNetwork)
	assert.ErrorIs(t, err, cause)

	assert.Same(t, err, adminauth.NetworkError(err), "already wrapped errors are returned as is")
}
