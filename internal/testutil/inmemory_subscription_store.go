package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/relaycrm/billing/internal/domain/subscription"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository with the same
// optimistic version semantics as the postgres repository.
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]

	mu         sync.Mutex
	updateErrs map[string]error
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		updateErrs:    make(map[string]error),
	}
}

// FailUpdatesFor makes Update return err for the given subscription ID. Used
// to verify that one failing item does not abort a sweep.
func (s *InMemorySubscriptionStore) FailUpdatesFor(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErrs[id] = err
}

func (s *InMemorySubscriptionStore) forcedUpdateErr(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateErrs[id]
}

// subscriptionFilterFn implements filtering logic for subscriptions
func subscriptionFilterFn(ctx context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok {
		return true
	}

	if tenantID := types.GetTenantID(ctx); tenantID != "" && sub.TenantID != tenantID {
		return false
	}

	if f.ClientID != "" && sub.ClientID != f.ClientID {
		return false
	}

	if f.PlanID != "" && sub.PlanID != f.PlanID {
		return false
	}

	if len(f.SubscriptionStatus) > 0 && !lo.Contains(f.SubscriptionStatus, sub.SubscriptionStatus) {
		return false
	}

	if f.PeriodEndBefore != nil && sub.CurrentPeriodEnd.After(*f.PeriodEndBefore) {
		return false
	}

	return true
}

// subscriptionSortFn sorts newest first
func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	cp := *sub
	if err := s.InMemoryStore.Create(ctx, sub.ID, &cp); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	stored, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	cp := *stored
	return &cp, nil
}

func (s *InMemorySubscriptionStore) GetLatestByClient(ctx context.Context, clientID string) (*subscription.Subscription, error) {
	filter := types.NewNoLimitSubscriptionFilter()
	filter.ClientID = clientID

	subs, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(subs) == 0 {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Client %s has no subscription", clientID).
			Mark(ierr.ErrNotFound)
	}

	return subs[0], nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	stored, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(stored))
	for i, sub := range stored {
		cp := *sub
		result[i] = &cp
	}
	return result, nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.forcedUpdateErr(sub.ID); err != nil {
		return err
	}

	stored, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}

	if stored.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("Reload the subscription and retry the operation").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"loaded_version":  sub.Version,
				"stored_version":  stored.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	sub.UpdatedAt = time.Now().UTC()

	cp := *sub
	return s.InMemoryStore.Update(ctx, sub.ID, &cp)
}
