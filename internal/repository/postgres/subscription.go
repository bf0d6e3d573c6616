package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/domain/subscription"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/types"
)

type subscriptionRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewSubscriptionRepository(db *sqlx.DB, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{
		db:  db,
		log: log,
	}
}

const subscriptionColumns = `
	id, client_id, plan_id, subscription_status, billing_cycle,
	current_period_start, current_period_end, trial_ends_at,
	cancelled_at, cancel_reason, proration_date, payment_method_id,
	metadata, version,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (
			:id, :client_id, :plan_id, :subscription_status, :billing_cycle,
			:current_period_start, :current_period_end, :trial_ends_at,
			:cancelled_at, :cancel_reason, :proration_date, :payment_method_id,
			:metadata, :version,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1 AND tenant_id = $2`

	var sub subscription.Subscription
	err := r.db.GetContext(ctx, &sub, query, id, types.GetTenantID(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetLatestByClient(ctx context.Context, clientID string) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE client_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var sub subscription.Subscription
	err := r.db.GetContext(ctx, &sub, query, clientID, types.GetTenantID(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Client %s has no subscription", clientID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get latest subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	where, args := r.buildWhere(ctx, filter)

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE ` + where + `
		ORDER BY created_at DESC`

	if !filter.IsUnlimited() {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.GetLimit(), filter.GetOffset())
	}

	subs := make([]*subscription.Subscription, 0)
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	where, args := r.buildWhere(ctx, filter)

	var count int
	query := `SELECT COUNT(*) FROM subscriptions WHERE ` + where
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

// Update writes the full row guarded by the loaded version. Zero rows
// affected means either a concurrent writer bumped the version or the row is
// gone; the two are distinguished with a follow-up existence check. On
// success the in-memory version is advanced to match the stored row.
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			plan_id = :plan_id,
			subscription_status = :subscription_status,
			billing_cycle = :billing_cycle,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			trial_ends_at = :trial_ends_at,
			cancelled_at = :cancelled_at,
			cancel_reason = :cancel_reason,
			proration_date = :proration_date,
			payment_method_id = :payment_method_id,
			metadata = :metadata,
			version = version + 1,
			updated_at = NOW(),
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND version = :version`

	result, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrDatabase)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}

	if affected == 0 {
		if _, getErr := r.Get(ctx, sub.ID); getErr != nil {
			return getErr
		}
		return ierr.NewError("subscription was modified concurrently").
			WithHint("Reload the subscription and retry the operation").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"loaded_version":  sub.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	return nil
}

// buildWhere scopes queries to the calling tenant when one is present. The
// sweep runs without tenant context and scans across tenants.
func (r *subscriptionRepository) buildWhere(ctx context.Context, filter *types.SubscriptionFilter) (string, []interface{}) {
	conditions := []string{"TRUE"}
	args := []interface{}{}

	if tenantID := types.GetTenantID(ctx); tenantID != "" {
		args = append(args, tenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}

	if filter == nil {
		return strings.Join(conditions, " AND "), args
	}

	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.PlanID != "" {
		args = append(args, filter.PlanID)
		conditions = append(conditions, fmt.Sprintf("plan_id = $%d", len(args)))
	}
	if len(filter.SubscriptionStatus) > 0 {
		placeholders := make([]string, len(filter.SubscriptionStatus))
		for i, status := range filter.SubscriptionStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("subscription_status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.PeriodEndBefore != nil {
		args = append(args, *filter.PeriodEndBefore)
		conditions = append(conditions, fmt.Sprintf("current_period_end <= $%d", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}
