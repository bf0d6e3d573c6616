package audit

import "context"

// Logger is the audit sink consumed by the core. Implementations must treat
// LogEvent as best-effort from the caller's perspective: the lifecycle engine
// never rolls back a committed transition because auditing failed.
type Logger interface {
	LogEvent(ctx context.Context, event *Event) error
}
