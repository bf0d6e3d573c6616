package types

import (
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the payment status of an emitted invoice.
// The billing core only ever creates invoices in pending status -
// collection is handled upstream.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusVoid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Invalid invoice status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
