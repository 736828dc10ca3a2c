// Package activitymap flattens admin activity events into records for log
// pipelines and audit stores.
package activitymap

import (
	"maps"
	"strings"
	"time"

	adminauth "github.com/goliatone/go-admin-auth"
)

const (
	// MetadataKeyActorType stores adminauth.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyEmail stores the email the event was raised for.
	MetadataKeyEmail = "email"
	// MetadataKeyEventID stores the source event id.
	MetadataKeyEventID = "event_id"
)

const (
	// Channel is set on every record.
	Channel = "admin-auth"
	// ObjectType is set on every record; the subject of an admin event is
	// always an admin account.
	ObjectType = "admin"
	// AnonymousActor stands in for events raised before an identity is known,
	// such as failed or throttled logins.
	AnonymousActor = "anonymous"
)

// Normalized is a transport-agnostic activity record.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Normalize converts event into a Normalized record. The account is
// identified by the actor id, or by the lowercased email when the event has
// no actor.
func Normalize(event adminauth.ActivityEvent) Normalized {
	actorID := strings.TrimSpace(event.Actor.ID)
	objectID := actorID
	if objectID == "" {
		objectID = strings.ToLower(strings.TrimSpace(event.Email))
	}
	if actorID == "" {
		actorID = AnonymousActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	reason, _ := event.Metadata["reason"].(string)

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: ObjectType,
		ObjectID:   objectID,
		Channel:    Channel,
		Reason:     reason,
		Metadata:   metadataFor(event),
		OccurredAt: occurredAt,
	}
}

// metadataFor copies the event metadata and adds the envelope fields unless
// the event already set them.
func metadataFor(event adminauth.ActivityEvent) map[string]any {
	out := maps.Clone(event.Metadata)
	if out == nil {
		out = map[string]any{}
	}

	for key, value := range map[string]string{
		MetadataKeyActorType: strings.TrimSpace(event.Actor.Type),
		MetadataKeyEmail:     strings.TrimSpace(event.Email),
		MetadataKeyEventID:   strings.TrimSpace(event.ID),
	} {
		if _, exists := out[key]; value != "" && !exists {
			out[key] = value
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
