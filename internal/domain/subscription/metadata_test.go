package subscription

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIsAdditive(t *testing.T) {
	effective := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	m := ChangeMetadata{
		ScheduledDowngrade: &ScheduledDowngrade{
			NewPlanID:     "plan_basic",
			EffectiveDate: effective,
			CurrentPlanID: "plan_pro",
		},
	}

	m.Merge(ChangeMetadata{CancelAtPeriodEnd: lo.ToPtr(true)})

	require.NotNil(t, m.ScheduledDowngrade, "merge must not drop unrelated fields")
	assert.Equal(t, "plan_basic", m.ScheduledDowngrade.NewPlanID)
	assert.True(t, m.IsCancelAtPeriodEnd())
}

func TestMergeOverwritesSameField(t *testing.T) {
	m := ChangeMetadata{
		ScheduledUpgrade: &ScheduledUpgrade{NewPlanID: "plan_a"},
	}

	m.Merge(ChangeMetadata{
		ScheduledUpgrade: &ScheduledUpgrade{NewPlanID: "plan_b"},
	})

	assert.Equal(t, "plan_b", m.ScheduledUpgrade.NewPlanID)
}

func TestMergeEmptyPatchIsNoop(t *testing.T) {
	now := time.Now().UTC()
	m := ChangeMetadata{
		SuspendedAt:   &now,
		SuspendReason: lo.ToPtr("payment failure"),
	}

	m.Merge(ChangeMetadata{})

	assert.NotNil(t, m.SuspendedAt)
	assert.Equal(t, "payment failure", *m.SuspendReason)
}

func TestScanValueRoundTrip(t *testing.T) {
	effective := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	m := ChangeMetadata{
		ScheduledDowngrade: &ScheduledDowngrade{
			NewPlanID:     "plan_basic",
			EffectiveDate: effective,
			CurrentPlanID: "plan_pro",
		},
		CancelAtPeriodEnd: lo.ToPtr(true),
	}

	value, err := m.Value()
	require.NoError(t, err)

	var decoded ChangeMetadata
	require.NoError(t, decoded.Scan(value.([]byte)))
	assert.Equal(t, m, decoded)
}

func TestScanNilResetsMetadata(t *testing.T) {
	m := ChangeMetadata{CancelAtPeriodEnd: lo.ToPtr(true)}
	require.NoError(t, m.Scan(nil))
	assert.Equal(t, ChangeMetadata{}, m)
}

func TestUnsetFieldsOmittedFromJSON(t *testing.T) {
	data, err := json.Marshal(ChangeMetadata{CancelAtPeriodEnd: lo.ToPtr(true)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cancel_at_period_end":true}`, string(data))
}
