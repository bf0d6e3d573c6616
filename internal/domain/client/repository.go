package client

import (
	"context"

	"github.com/relaycrm/billing/internal/types"
)

// Repository defines the interface for the client account store
type Repository interface {
	Get(ctx context.Context, id string) (*Client, error)
	// SetStatus updates just the account status. Used by the suspend cascade,
	// the only lifecycle operation with a side effect outside the
	// subscription aggregate.
	SetStatus(ctx context.Context, id string, status types.ClientStatus) error
}
