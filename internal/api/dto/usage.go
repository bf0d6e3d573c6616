package dto

import (
	"github.com/relaycrm/billing/internal/domain/usage"
	"github.com/shopspring/decimal"
)

// GetUsageResponse lists the usage records whose period overlaps the query
// instant, with the summed quantity for convenience.
type GetUsageResponse struct {
	Items         []*usage.Usage  `json:"items"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}
