package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Entity prefixes for generated identifiers
const (
	UUID_PREFIX_SUBSCRIPTION = "subs"
	UUID_PREFIX_INVOICE      = "inv"
	UUID_PREFIX_PLAN         = "plan"
	UUID_PREFIX_CLIENT       = "client"
	UUID_PREFIX_USAGE        = "usage"
	UUID_PREFIX_AUDIT_EVENT  = "audit"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// prefixed with the entity type ex subs_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
