package testutil

import (
	"context"
	"sync"

	"github.com/relaycrm/billing/internal/domain/audit"
)

// InMemoryAuditLogger implements audit.Logger and records emitted events for
// assertions.
type InMemoryAuditLogger struct {
	mu     sync.Mutex
	events []*audit.Event

	// LogErr, when set, is returned by LogEvent. Used to verify audit
	// failures never fail the triggering operation.
	LogErr error
}

func NewInMemoryAuditLogger() *InMemoryAuditLogger {
	return &InMemoryAuditLogger{
		events: make([]*audit.Event, 0),
	}
}

func (l *InMemoryAuditLogger) LogEvent(ctx context.Context, event *audit.Event) error {
	if l.LogErr != nil {
		return l.LogErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a snapshot of recorded events
func (l *InMemoryAuditLogger) Events() []*audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*audit.Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsByAction returns recorded events matching the action
func (l *InMemoryAuditLogger) EventsByAction(action string) []*audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*audit.Event
	for _, e := range l.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
