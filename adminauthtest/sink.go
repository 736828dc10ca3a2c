package adminauthtest

import (
	"context"
	"sync"

	adminauth "github.com/goliatone/go-admin-auth"
)

// RecordingSink keeps every activity event it receives.
type RecordingSink struct {
	mu     sync.Mutex
	events []adminauth.ActivityEvent
	Err    error
}

func (s *RecordingSink) Record(_ context.Context, event adminauth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.Err
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []adminauth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adminauth.ActivityEvent(nil), s.events...)
}

// Types returns the recorded event types in order.
func (s *RecordingSink) Types() []adminauth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]adminauth.ActivityEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}
