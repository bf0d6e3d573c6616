package subscription

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScheduledUpgrade is a deferred plan upgrade applied by the sweep at period end.
type ScheduledUpgrade struct {
	NewPlanID     string    `json:"new_plan_id"`
	EffectiveDate time.Time `json:"effective_date"`
}

// ScheduledDowngrade is a deferred plan downgrade applied by the sweep at
// period end. CurrentPlanID is captured at request time for auditing.
type ScheduledDowngrade struct {
	NewPlanID     string    `json:"new_plan_id"`
	EffectiveDate time.Time `json:"effective_date"`
	CurrentPlanID string    `json:"current_plan_id"`
}

// UpgradeRecord captures the last immediate plan change for auditing.
type UpgradeRecord struct {
	FromPlanID string          `json:"from_plan_id"`
	ToPlanID   string          `json:"to_plan_id"`
	Proration  decimal.Decimal `json:"proration"`
	Date       time.Time       `json:"date"`
}

// ChangeMetadata is the typed container for a subscription's optional
// pending-change sub-records. It is stored as a single JSONB column but
// modelled as a struct so that merges are field-by-field and type-checked
// rather than a wholesale map replace.
type ChangeMetadata struct {
	ScheduledUpgrade   *ScheduledUpgrade   `json:"scheduled_upgrade,omitempty"`
	ScheduledDowngrade *ScheduledDowngrade `json:"scheduled_downgrade,omitempty"`
	CancelAtPeriodEnd  *bool               `json:"cancel_at_period_end,omitempty"`
	SuspendedAt        *time.Time          `json:"suspended_at,omitempty"`
	SuspendReason      *string             `json:"suspend_reason,omitempty"`
	ReactivatedAt      *time.Time          `json:"reactivated_at,omitempty"`
	LastUpgrade        *UpgradeRecord      `json:"last_upgrade,omitempty"`
}

// Merge applies the set fields of patch onto m, leaving unset fields
// untouched. This is the additive merge the lifecycle operations rely on:
// recording a scheduled downgrade must not drop a pending cancel flag.
func (m *ChangeMetadata) Merge(patch ChangeMetadata) {
	if patch.ScheduledUpgrade != nil {
		m.ScheduledUpgrade = patch.ScheduledUpgrade
	}
	if patch.ScheduledDowngrade != nil {
		m.ScheduledDowngrade = patch.ScheduledDowngrade
	}
	if patch.CancelAtPeriodEnd != nil {
		m.CancelAtPeriodEnd = patch.CancelAtPeriodEnd
	}
	if patch.SuspendedAt != nil {
		m.SuspendedAt = patch.SuspendedAt
	}
	if patch.SuspendReason != nil {
		m.SuspendReason = patch.SuspendReason
	}
	if patch.ReactivatedAt != nil {
		m.ReactivatedAt = patch.ReactivatedAt
	}
	if patch.LastUpgrade != nil {
		m.LastUpgrade = patch.LastUpgrade
	}
}

// IsCancelAtPeriodEnd reports whether a period-end cancellation is pending.
func (m *ChangeMetadata) IsCancelAtPeriodEnd() bool {
	return m.CancelAtPeriodEnd != nil && *m.CancelAtPeriodEnd
}

// Scan implements the sql.Scanner interface for ChangeMetadata
func (m *ChangeMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ChangeMetadata{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	var result ChangeMetadata
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

// Value implements the driver.Valuer interface for ChangeMetadata
func (m ChangeMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}
