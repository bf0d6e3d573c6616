package testutil

import (
	"context"

	"github.com/relaycrm/billing/internal/domain/plan"
	ierr "github.com/relaycrm/billing/internal/errors"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*plan.Plan](),
	}
}

// Add seeds a plan into the catalog
func (s *InMemoryPlanStore) Add(ctx context.Context, p *plan.Plan) error {
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Plan with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPlanStore) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	plans, err := s.InMemoryStore.List(ctx, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	for _, p := range plans {
		if p.Code == code {
			return p, nil
		}
	}

	return nil, ierr.NewError("plan not found").
		WithHintf("Plan with code %s was not found", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPlanStore) List(ctx context.Context) ([]*plan.Plan, error) {
	return s.InMemoryStore.List(ctx, nil, nil, func(i, j *plan.Plan) bool {
		return i.Code < j.Code
	})
}
