package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/cache"
	"github.com/relaycrm/billing/internal/domain/plan"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/types"
)

type planRepository struct {
	db    *sqlx.DB
	log   *logger.Logger
	cache cache.Cache
}

func NewPlanRepository(db *sqlx.DB, log *logger.Logger, cache cache.Cache) plan.Repository {
	return &planRepository{
		db:    db,
		log:   log,
		cache: cache,
	}
}

const planColumns = `
	id, code, name, price_monthly, price_yearly, trial_days,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

// Get reads through the cache; the catalog changes rarely and is consulted
// on every lifecycle operation.
func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	cacheKey := cache.GenerateKey(cache.PrefixPlan, types.GetTenantID(ctx), id)
	if cached, found := r.cache.Get(ctx, cacheKey); found {
		if p, ok := cached.(*plan.Plan); ok {
			return p, nil
		}
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 AND tenant_id = $2`

	var p plan.Plan
	err := r.db.GetContext(ctx, &p, query, id, types.GetTenantID(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Plan with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(ctx, cacheKey, &p, cache.DefaultExpiration)
	return &p, nil
}

func (r *planRepository) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE code = $1 AND tenant_id = $2`

	var p plan.Plan
	err := r.db.GetContext(ctx, &p, query, code, types.GetTenantID(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Plan with code %s was not found", code).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan by code").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *planRepository) List(ctx context.Context) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE tenant_id = $1 ORDER BY code`

	plans := make([]*plan.Plan, 0)
	if err := r.db.SelectContext(ctx, &plans, query, types.GetTenantID(ctx)); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plans").
			Mark(ierr.ErrDatabase)
	}
	return plans, nil
}
