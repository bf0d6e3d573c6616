package plan

import "context"

// Repository defines the interface for plan catalog access
type Repository interface {
	Get(ctx context.Context, id string) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
}
