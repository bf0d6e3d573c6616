package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/relaycrm/billing/internal/domain/invoice"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
	"github.com/relaycrm/billing/internal/types"
)

type invoiceRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewInvoiceRepository(db *sqlx.DB, log *logger.Logger) invoice.Repository {
	return &invoiceRepository{
		db:  db,
		log: log,
	}
}

const invoiceColumns = `
	id, client_id, subscription_id, amount, tax_amount, total_amount,
	invoice_status, due_date, line_items,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (
			:id, :client_id, :subscription_id, :amount, :tax_amount, :total_amount,
			:invoice_status, :due_date, :line_items,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND tenant_id = $2`

	var inv invoice.Invoice
	err := r.db.GetContext(ctx, &inv, query, id, types.GetTenantID(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Invoice with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE subscription_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC`

	invoices := make([]*invoice.Invoice, 0)
	if err := r.db.SelectContext(ctx, &invoices, query, subscriptionID, types.GetTenantID(ctx)); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}
