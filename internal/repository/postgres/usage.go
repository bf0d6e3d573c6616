package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/domain/usage"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/types"
)

type usageRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewUsageRepository(db *sqlx.DB, log *logger.Logger) usage.Repository {
	return &usageRepository{
		db:  db,
		log: log,
	}
}

func (r *usageRepository) Query(ctx context.Context, params *usage.QueryParams) ([]*usage.Usage, error) {
	conditions := []string{"tenant_id = $1", "subscription_id = $2"}
	args := []interface{}{types.GetTenantID(ctx), params.SubscriptionID}

	if params.FeatureCode != "" {
		args = append(args, params.FeatureCode)
		conditions = append(conditions, fmt.Sprintf("feature_code = $%d", len(args)))
	}
	if !params.At.IsZero() {
		args = append(args, params.At)
		conditions = append(conditions,
			fmt.Sprintf("period_start <= $%d AND period_end >= $%d", len(args), len(args)))
	}

	query := `
		SELECT id, subscription_id, feature_code, quantity, period_start, period_end,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		FROM usage_records
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY period_start`

	records := make([]*usage.Usage, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to query usage records").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}
