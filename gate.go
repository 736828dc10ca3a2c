package adminauth

import (
	"context"
	"sync/atomic"
	"time"
)

// LoginRequest is a login form submission.
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
}

// LoginGate runs a login submission through the attempt tracker and the
// authorizer, and keeps the remember-me hint in sync.
//
// At most one login is in flight per gate; concurrent submissions fail
// with ErrLoginInProgress.
type LoginGate struct {
	authorizer   *AdminAuthorizer
	tracker      *LoginAttemptTracker
	remember     *RememberMeStore
	observer     *SessionObserver
	inflight     atomic.Bool
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// GateOption customizes a LoginGate.
type GateOption func(*LoginGate)

// WithGateRememberMe enables remember-me bookkeeping.
func WithGateRememberMe(store *RememberMeStore) GateOption {
	return func(g *LoginGate) {
		g.remember = store
	}
}

// WithGateObserver re-resolves observer after every successful login. The
// identity change event can resolve before the first-login profile is stored.
func WithGateObserver(observer *SessionObserver) GateOption {
	return func(g *LoginGate) {
		g.observer = observer
	}
}

// WithGateLogger overrides the logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *LoginGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGateActivitySink sets the sink for rate limit events.
func WithGateActivitySink(sink ActivitySink) GateOption {
	return func(g *LoginGate) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGateClock injects a custom clock for event timestamps.
func WithGateClock(clock func() time.Time) GateOption {
	return func(g *LoginGate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// NewLoginGate wires an authorizer and a tracker together.
func NewLoginGate(authorizer *AdminAuthorizer, tracker *LoginAttemptTracker, opts ...GateOption) *LoginGate {
	if tracker == nil {
		tracker = NewLoginAttemptTracker()
	}

	g := &LoginGate{
		authorizer:   authorizer,
		tracker:      tracker,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Login submits req. Locked gates reject without contacting the identity provider.
func (g *LoginGate) Login(ctx context.Context, req LoginRequest) (Identity, error) {
	if !g.inflight.CompareAndSwap(false, true) {
		return nil, ErrLoginInProgress
	}
	defer g.inflight.Store(false)

	if err := g.tracker.Check(); err != nil {
		g.logger.Warn("admin login rejected, locked out", "email", req.Email, "error", err)
		emitActivity(ctx, g.activitySink, g.logger, g.now(), ActivityEvent{
			EventType: ActivityEventLoginRateLimited,
			Actor:     ActorRef{Type: "unknown"},
			Email:     req.Email,
		})
		return nil, err
	}

	identity, err := g.authorizer.Login(ctx, req.Email, req.Password)
	if err != nil {
		snap := g.tracker.RecordFailure(err)
		g.logger.Debug("admin login failed", "email", req.Email, "state", snap.State, "failures", snap.Failures)
		return nil, err
	}

	g.tracker.RecordSuccess()
	if g.observer != nil {
		g.observer.Refresh()
	}
	g.syncRememberMe(ctx, req)

	return identity, nil
}

// Logout signs out through the authorizer.
func (g *LoginGate) Logout(ctx context.Context) error {
	return g.authorizer.Logout(ctx)
}

// Attempts returns the tracker snapshot for UI hints.
func (g *LoginGate) Attempts() AttemptSnapshot {
	return g.tracker.Snapshot()
}

// RememberedLogin returns the stored form hint, if remember-me is enabled.
func (g *LoginGate) RememberedLogin(ctx context.Context) (RememberMeHint, bool) {
	if g.remember == nil {
		return RememberMeHint{}, false
	}
	hint, ok, err := g.remember.Get(ctx)
	if err != nil {
		g.logger.Warn("could not read remember-me hint", "error", err)
		return RememberMeHint{}, false
	}
	return hint, ok
}

func (g *LoginGate) syncRememberMe(ctx context.Context, req LoginRequest) {
	if g.remember == nil {
		return
	}

	var err error
	if req.RememberMe {
		err = g.remember.Set(ctx, req.Email, true)
	} else {
		err = g.remember.Clear(ctx)
	}
	if err != nil {
		g.logger.Warn("could not update remember-me hint", "error", err)
	}
}
