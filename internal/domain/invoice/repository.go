package invoice

import "context"

// Repository defines the interface for the invoice store consumed by the core
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Invoice, error)
}
