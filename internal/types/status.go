package types

// Status is the record-level lifecycle status of a persisted resource.
// This is distinct from the business status of a subscription - archived
// records are excluded from queries but never hard-deleted.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}

// RunMode is the deployment mode of the service
type RunMode string

const (
	ModeLocal RunMode = "local"
	ModeProd  RunMode = "prod"
)

// LogLevel is the logging verbosity level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
