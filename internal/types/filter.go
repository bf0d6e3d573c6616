package types

import (
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/samber/lo"
)

const (
	filterDefaultLimit = 50
	filterMaxLimit     = 1000
)

// QueryFilter carries common pagination and record-status options for list queries
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" form:"limit"`
	Offset *int    `json:"offset,omitempty" form:"offset"`
	Status *Status `json:"status,omitempty" form:"status"`
}

// NewDefaultQueryFilter returns a filter with default pagination over published records
func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(filterDefaultLimit),
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

// NewNoLimitQueryFilter returns a filter without pagination over published records
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Status: lo.ToPtr(StatusPublished),
	}
}

func (f QueryFilter) Validate() error {
	if f.Limit != nil && (*f.Limit < 1 || *f.Limit > filterMaxLimit) {
		return ierr.NewError("invalid limit").
			WithHintf("Limit must be between 1 and %d", filterMaxLimit).
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("invalid offset").
			WithHint("Offset must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetLimit returns the effective limit for the query
func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return filterDefaultLimit
	}
	return *f.Limit
}

// GetOffset returns the effective offset for the query
func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

// GetStatus returns the effective record status for the query
func (f *QueryFilter) GetStatus() Status {
	if f == nil || f.Status == nil {
		return StatusPublished
	}
	return *f.Status
}

// IsUnlimited reports whether the query should skip pagination
func (f *QueryFilter) IsUnlimited() bool {
	return f == nil || f.Limit == nil
}
