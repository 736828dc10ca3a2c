package adminauth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrObserverStopped is returned when starting an observer after Stop.
var ErrObserverStopped = errors.New("session observer stopped")

// SessionListener receives the latest resolved session, or nil.
// Listeners run on the publishing goroutine. They must not block or call
// back into the observer or the identity provider.
type SessionListener func(session *AdminSession)

// SessionObserver re-derives the admin session from the identity provider's
// change stream and republishes it to listeners.
//
// Each provider event is numbered; a resolution is only published if no newer
// event arrived in the meantime, so listeners always see the latest state.
type SessionObserver struct {
	authorizer   *AdminAuthorizer
	provider     IdentityProvider
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time

	mu          sync.Mutex
	started     bool
	stopped     bool
	seq         uint64
	current     *AdminSession
	listeners   map[uint64]SessionListener
	nextID      uint64
	unsubscribe Unsubscribe
	ctx         context.Context
	cancel      context.CancelFunc
	stopOnce    sync.Once

	// publishMu keeps "compare, store, deliver" atomic with respect to
	// other publications and new subscriptions.
	publishMu sync.Mutex
}

// ObserverOption customizes a SessionObserver.
type ObserverOption func(*SessionObserver)

// WithObserverLogger overrides the logger.
func WithObserverLogger(logger Logger) ObserverOption {
	return func(o *SessionObserver) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserverActivitySink sets the sink for session invalidation events.
func WithObserverActivitySink(sink ActivitySink) ObserverOption {
	return func(o *SessionObserver) {
		o.activitySink = normalizeActivitySink(sink)
	}
}

// NewSessionObserver returns an observer that uses authorizer's policy.
func NewSessionObserver(authorizer *AdminAuthorizer, opts ...ObserverOption) *SessionObserver {
	o := &SessionObserver{
		authorizer:   authorizer,
		provider:     authorizer.Provider(),
		logger:       authorizer.logger,
		activitySink: authorizer.activitySink,
		now:          authorizer.now,
		listeners:    map[uint64]SessionListener{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Start subscribes to the identity provider. Only the first call subscribes.
func (o *SessionObserver) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return ErrObserverStopped
	}
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()

	// the provider delivers the current identity synchronously, so this
	// must run without holding mu
	unsubscribe := o.provider.OnIdentityChanged(o.handle)

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		unsubscribe()
		return nil
	}
	o.unsubscribe = unsubscribe
	o.mu.Unlock()

	return nil
}

// Stop cancels the provider subscription and any in-flight resolution.
// It is safe to call more than once.
func (o *SessionObserver) Stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		unsubscribe := o.unsubscribe
		o.unsubscribe = nil
		cancel := o.cancel
		o.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
	})
}

// Subscribe registers listener. It receives the current value immediately
// and then every published change.
func (o *SessionObserver) Subscribe(listener SessionListener) Unsubscribe {
	if listener == nil {
		return func() {}
	}

	o.publishMu.Lock()
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.listeners[id] = listener
	current := o.current
	o.mu.Unlock()
	listener(current)
	o.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Current returns the latest published session, or nil.
func (o *SessionObserver) Current() *AdminSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Refresh re-resolves the provider's current identity as a new event, which
// picks up profile changes made out of band.
func (o *SessionObserver) Refresh() {
	o.handle(o.provider.CurrentIdentity())
}

func (o *SessionObserver) handle(identity Identity) {
	seq, ctx, ok := o.nextEvent()
	if !ok {
		return
	}

	if identity == nil {
		o.publish(seq, nil)
		return
	}

	if !o.authorizer.IsAllowListed(identity.Email()) {
		o.logger.Warn("session observer signing out non admin identity", "email", identity.Email())
		o.authorizer.signOut(ctx, "access denied")
		o.emit(ctx, identity, FailureAccessDenied)
		o.publish(seq, nil)
		return
	}

	go o.resolve(ctx, seq, identity)
}

func (o *SessionObserver) resolve(ctx context.Context, seq uint64, identity Identity) {
	session, err := o.authorizer.ResolveSession(ctx, identity)
	switch {
	case err == nil:
	case errors.Is(err, ErrInactiveAccount):
		o.logger.Warn("session observer signing out inactive admin", "id", identity.ID())
		o.authorizer.signOut(ctx, "inactive account")
		o.emit(ctx, identity, FailureInactiveAccount)
		session = nil
	case errors.Is(err, ErrProfileNotFound):
		o.logger.Debug("session observer found no admin profile", "id", identity.ID())
		session = nil
	default:
		o.logger.Error("error fetching admin profile", "id", identity.ID(), "error", err)
		session = nil
	}

	o.publish(seq, session)
}

func (o *SessionObserver) nextEvent() (uint64, context.Context, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped || !o.started {
		return 0, nil, false
	}
	o.seq++
	return o.seq, o.ctx, true
}

func (o *SessionObserver) publish(seq uint64, session *AdminSession) {
	o.publishMu.Lock()
	defer o.publishMu.Unlock()

	o.mu.Lock()
	if o.stopped || seq != o.seq {
		o.mu.Unlock()
		return
	}
	o.current = session
	listeners := make([]SessionListener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}

func (o *SessionObserver) emit(ctx context.Context, identity Identity, reason FailureKind) {
	emitActivity(ctx, o.activitySink, o.logger, o.now(), ActivityEvent{
		EventType: ActivityEventSessionInvalidated,
		Actor:     actorFromIdentity(identity),
		Email:     identity.Email(),
		Metadata:  map[string]any{"reason": string(reason)},
	})
}
