package directdebit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirySweep(t *testing.T) {
	today := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	stale := createValidMandate(t, "MDT-STALE", MandateTypeRecurrent)
	stale.SignatureDate = DatePtr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	stale.LastDebitDate = DatePtr(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))

	unused := createValidMandate(t, "MDT-UNUSED", MandateTypeOneOff)
	unused.SignatureDate = DatePtr(time.Date(2022, 3, 3, 0, 0, 0, 0, time.UTC))

	recent := createRecurringMandate(t, "MDT-RECENT", SequenceRecurring)
	recent.SignatureDate = DatePtr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	recent.LastDebitDate = DatePtr(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))

	young := createValidMandate(t, "MDT-YOUNG", MandateTypeOneOff)

	draft := createTestMandate(t, "MDT-DRAFT", MandateTypeOneOff)
	draft.SignatureDate = DatePtr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	all := []*Mandate{stale, unused, recent, young, draft}

	t.Run("disabled by default", func(t *testing.T) {
		sweep := NewExpirySweep()
		assert.False(t, sweep.Enabled)
		assert.Equal(t, DefaultUnusedMonthsBeforeExpiry, sweep.UnusedMonths)
		assert.Nil(t, sweep.Run(all, today))
		assert.Equal(t, MandateStateValid, stale.State)
	})

	t.Run("limit", func(t *testing.T) {
		assert.Equal(t, time.Date(2022, 3, 3, 0, 0, 0, 0, time.UTC), NewExpirySweep().Limit(today))
		assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), ExpirySweep{UnusedMonths: 12}.Limit(today))
	})

	t.Run("enabled", func(t *testing.T) {
		sweep := ExpirySweep{Enabled: true, UnusedMonths: 36}
		expired := sweep.Run(all, today)

		require.Len(t, expired, 2)
		assert.Equal(t, "MDT-STALE", expired[0].Reference)
		assert.Equal(t, "MDT-UNUSED", expired[1].Reference)
		assert.Equal(t, MandateStateExpired, stale.State)
		assert.Equal(t, MandateStateExpired, unused.State)
		assert.Equal(t, MandateStateValid, recent.State)
		assert.Equal(t, MandateStateValid, young.State)
		assert.Equal(t, MandateStateDraft, draft.State)

		events := stale.GetDomainEvents()
		require.NotEmpty(t, events)
		assert.Equal(t, EventTypeMandateExpired, events[len(events)-1].EventType())
	})
}
