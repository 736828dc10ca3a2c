package adminauth

import (
	"sync"
	"time"
)

const (
	// MaxConsecutiveFailures is the number of counted failures that triggers a lockout.
	MaxConsecutiveFailures = 3
	// LockoutDuration is how long logins are rejected once locked.
	LockoutDuration = 60 * time.Second
)

// AttemptState is the tracker state.
type AttemptState string

const (
	AttemptStateIdle     AttemptState = "idle"
	AttemptStateCounting AttemptState = "counting"
	AttemptStateLocked   AttemptState = "locked"
)

// AttemptSnapshot is a point-in-time view of the tracker.
type AttemptSnapshot struct {
	State             AttemptState  `json:"state"`
	Failures          int           `json:"failures"`
	RemainingAttempts int           `json:"remaining_attempts"`
	LockedUntil       time.Time     `json:"locked_until,omitzero"`
	Remaining         time.Duration `json:"-"`
}

// LoginAttemptTracker throttles consecutive failed logins for a single client.
//
// This is a local throttle only. It lives in process memory, resets on
// restart, and does not replace a server-side lockout.
//
// The lockout is resolved by comparing the clock against a stored deadline on
// every access; there is no background timer.
type LoginAttemptTracker struct {
	mu       sync.Mutex
	failures int
	deadline time.Time
	now      func() time.Time
	logger   Logger
}

// TrackerOption customizes a LoginAttemptTracker.
type TrackerOption func(*LoginAttemptTracker)

// WithTrackerClock injects a custom clock (useful for tests).
func WithTrackerClock(clock func() time.Time) TrackerOption {
	return func(t *LoginAttemptTracker) {
		if clock != nil {
			t.now = clock
		}
	}
}

// WithTrackerLogger overrides the logger.
func WithTrackerLogger(logger Logger) TrackerOption {
	return func(t *LoginAttemptTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewLoginAttemptTracker returns an idle tracker.
func NewLoginAttemptTracker(opts ...TrackerOption) *LoginAttemptTracker {
	t := &LoginAttemptTracker{
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Check returns a *RateLimitedError while the lockout window is active.
func (t *LoginAttemptTracker) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expire(now)

	if t.state() == AttemptStateLocked {
		return &RateLimitedError{Remaining: t.deadline.Sub(now)}
	}
	return nil
}

// RecordSuccess resets the tracker to idle.
func (t *LoginAttemptTracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reset()
}

// RecordFailure counts err toward the lockout when it looks like a guessing
// attempt and returns the resulting snapshot.
func (t *LoginAttemptTracker) RecordFailure(err error) AttemptSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expire(now)

	kind := ClassifyFailure(err)
	if !kind.CountsTowardLockout() || t.state() == AttemptStateLocked {
		return t.snapshot(now)
	}

	t.failures++
	if t.failures >= MaxConsecutiveFailures {
		t.failures = MaxConsecutiveFailures
		t.deadline = now.Add(LockoutDuration)
		t.logger.Warn("too many failed login attempts, locking", "failures", t.failures, "until", t.deadline)
	}

	return t.snapshot(now)
}

// Snapshot returns the current state, clearing an expired lockout first.
func (t *LoginAttemptTracker) Snapshot() AttemptSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expire(now)
	return t.snapshot(now)
}

// expire clears a lockout whose deadline has passed. Callers hold mu.
func (t *LoginAttemptTracker) expire(now time.Time) {
	if !t.deadline.IsZero() && !now.Before(t.deadline) {
		t.logger.Debug("login lockout expired", "deadline", t.deadline)
		t.reset()
	}
}

func (t *LoginAttemptTracker) reset() {
	t.failures = 0
	t.deadline = time.Time{}
}

func (t *LoginAttemptTracker) state() AttemptState {
	switch {
	case !t.deadline.IsZero():
		return AttemptStateLocked
	case t.failures > 0:
		return AttemptStateCounting
	default:
		return AttemptStateIdle
	}
}

func (t *LoginAttemptTracker) snapshot(now time.Time) AttemptSnapshot {
	s := AttemptSnapshot{
		State:             t.state(),
		Failures:          t.failures,
		RemainingAttempts: MaxConsecutiveFailures - t.failures,
	}
	if s.State == AttemptStateLocked {
		s.RemainingAttempts = 0
		s.LockedUntil = t.deadline
		s.Remaining = t.deadline.Sub(now)
	}
	return s
}
