package testutil

import (
	"context"

	"github.com/relaycrm/billing/internal/domain/client"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/types"
)

// InMemoryClientStore implements client.Repository
type InMemoryClientStore struct {
	*InMemoryStore[*client.Client]

	// SetStatusErr, when set, is returned by SetStatus. Used to verify the
	// suspend cascade is best-effort.
	SetStatusErr error
}

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		InMemoryStore: NewInMemoryStore[*client.Client](),
	}
}

// Add seeds a client account
func (s *InMemoryClientStore) Add(ctx context.Context, c *client.Client) error {
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Client with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (s *InMemoryClientStore) SetStatus(ctx context.Context, id string, status types.ClientStatus) error {
	if s.SetStatusErr != nil {
		return s.SetStatusErr
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	c.ClientStatus = status
	return s.InMemoryStore.Update(ctx, id, c)
}
