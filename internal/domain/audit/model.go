package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaycrm/billing/internal/types"
)

// Event is a before/after snapshot of an entity transition. Every lifecycle
// operation emits one; the sweep emits one per applied transition.
type Event struct {
	ID         string          `db:"id" json:"id"`
	Actor      string          `db:"actor" json:"actor"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	OldState   json.RawMessage `db:"old_state" json:"old_state"`
	NewState   json.RawMessage `db:"new_state" json:"new_state"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
	TenantID   string          `db:"tenant_id" json:"tenant_id"`
}

// NewEvent builds an audit event with marshalled snapshots. A nil old or new
// state (e.g. creation has no prior state) is recorded as JSON null.
func NewEvent(ctx context.Context, action, entityType, entityID string, oldState, newState any) *Event {
	oldJSON, _ := json.Marshal(oldState)
	newJSON, _ := json.Marshal(newState)

	actor := types.GetUserID(ctx)
	if actor == "" {
		actor = "system"
	}

	return &Event{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_AUDIT_EVENT),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldState:   oldJSON,
		NewState:   newJSON,
		OccurredAt: time.Now().UTC(),
		TenantID:   types.GetTenantID(ctx),
	}
}
