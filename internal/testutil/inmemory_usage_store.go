package testutil

import (
	"context"

	"github.com/relaycrm/billing/internal/domain/usage"
)

// InMemoryUsageStore implements usage.Repository
type InMemoryUsageStore struct {
	*InMemoryStore[*usage.Usage]
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		InMemoryStore: NewInMemoryStore[*usage.Usage](),
	}
}

// Add seeds a usage record
func (s *InMemoryUsageStore) Add(ctx context.Context, u *usage.Usage) error {
	return s.InMemoryStore.Create(ctx, u.ID, u)
}

func (s *InMemoryUsageStore) Query(ctx context.Context, params *usage.QueryParams) ([]*usage.Usage, error) {
	return s.InMemoryStore.List(ctx, params,
		func(ctx context.Context, u *usage.Usage, filter interface{}) bool {
			p := filter.(*usage.QueryParams)
			if u.SubscriptionID != p.SubscriptionID {
				return false
			}
			if p.FeatureCode != "" && u.FeatureCode != p.FeatureCode {
				return false
			}
			if !p.At.IsZero() && !u.OverlapsAt(p.At) {
				return false
			}
			return true
		},
		func(i, j *usage.Usage) bool {
			return i.PeriodStart.Before(j.PeriodStart)
		})
}
