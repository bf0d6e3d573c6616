package types

import (
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/samber/lo"
)

// ClientStatus is the account status of a CRM client (tenant organization).
// The billing core only writes it through the suspend cascade.
type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "active"
	ClientStatusSuspended ClientStatus = "suspended"
)

func (s ClientStatus) String() string {
	return string(s)
}

func (s ClientStatus) Validate() error {
	allowed := []ClientStatus{
		ClientStatusActive,
		ClientStatusSuspended,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid client status").
			WithHint("Invalid client status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
