package testutil

import (
	"context"

	"github.com/relaycrm/billing/internal/domain/invoice"
	ierr "github.com/relaycrm/billing/internal/errors"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Invoice with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, subscriptionID,
		func(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
			return inv.SubscriptionID == filter.(string)
		},
		func(i, j *invoice.Invoice) bool {
			return i.CreatedAt.After(j.CreatedAt)
		})
}
