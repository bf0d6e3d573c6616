package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/domain/client"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/types"
)

type clientRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewClientRepository(db *sqlx.DB, log *logger.Logger) client.Repository {
	return &clientRepository{
		db:  db,
		log: log,
	}
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	query := `
		SELECT id, name, email, client_status,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		FROM clients
		WHERE id = $1 AND tenant_id = $2`

	var c client.Client
	err := r.db.GetContext(ctx, &c, query, id, types.GetTenantID(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Client with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get client").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *clientRepository) SetStatus(ctx context.Context, id string, status types.ClientStatus) error {
	query := `
		UPDATE clients
		SET client_status = $1, updated_at = NOW(), updated_by = $2
		WHERE id = $3 AND tenant_id = $4`

	result, err := r.db.ExecContext(ctx, query, status, types.GetUserID(ctx), id, types.GetTenantID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client status").
			WithReportableDetails(map[string]any{
				"client_id": id,
			}).
			Mark(ierr.ErrDatabase)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client status").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("client not found").
			WithHintf("Client with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
