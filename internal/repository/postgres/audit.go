package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/domain/audit"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
)

type auditRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewAuditLogger returns an audit.Logger that appends events to the audit
// table. Rows are never updated or deleted.
func NewAuditLogger(db *sqlx.DB, log *logger.Logger) audit.Logger {
	return &auditRepository{
		db:  db,
		log: log,
	}
}

func (r *auditRepository) LogEvent(ctx context.Context, event *audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, actor, action, entity_type, entity_id,
			old_state, new_state, occurred_at, tenant_id
		) VALUES (
			:id, :actor, :action, :entity_type, :entity_id,
			:old_state, :new_state, :occurred_at, :tenant_id
		)`

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record audit event").
			WithReportableDetails(map[string]any{
				"action":    event.Action,
				"entity_id": event.EntityID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}
