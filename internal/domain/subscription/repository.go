package subscription

import (
	"context"

	"github.com/relaycrm/billing/internal/types"
)

// Repository defines the interface for subscription persistence.
// Update performs an optimistic-concurrency check on Version and returns
// a version conflict error when the loaded record is stale, so every
// lifecycle transition is an atomic read-modify-write on one subscription.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetLatestByClient returns the most recently created subscription for a
	// client regardless of status.
	GetLatestByClient(ctx context.Context, clientID string) (*Subscription, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
	Update(ctx context.Context, sub *Subscription) error
}
