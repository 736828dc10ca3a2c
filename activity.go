package adminauth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess           ActivityEventType = "admin.login.success"
	ActivityEventLoginFailure           ActivityEventType = "admin.login.failure"
	ActivityEventLoginRateLimited       ActivityEventType = "admin.login.rate_limited"
	ActivityEventAccessDenied           ActivityEventType = "admin.access.denied"
	ActivityEventAccountInactive        ActivityEventType = "admin.account.inactive"
	ActivityEventProfileCreated         ActivityEventType = "admin.profile.created"
	ActivityEventLogout                 ActivityEventType = "admin.logout"
	ActivityEventPasswordResetRequested ActivityEventType = "admin.password_reset.requested"
	ActivityEventSessionInvalidated     ActivityEventType = "admin.session.invalidated"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	Actor      ActorRef
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// emitActivity records an event best-effort; sink errors are only logged.
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, now time.Time, event ActivityEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error", "event", event.EventType, "error", err)
	}
}

func actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: identity.ID(), Type: "admin"}
}
