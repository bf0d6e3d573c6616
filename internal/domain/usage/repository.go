package usage

import (
	"context"
	"time"
)

// QueryParams filters usage records for a subscription. FeatureCode is
// optional; At restricts results to records whose period overlaps the instant.
type QueryParams struct {
	SubscriptionID string
	FeatureCode    string
	At             time.Time
}

// Repository defines the interface for the usage store consumed by the core
type Repository interface {
	Query(ctx context.Context, params *QueryParams) ([]*Usage, error)
}
