package directdebit

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceOrder(t *testing.T) {
	sent := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)

	oneOff := createValidMandate(t, "MDT-OOFF", MandateTypeOneOff)
	first := createValidMandate(t, "MDT-FRST", MandateTypeRecurrent)
	first.SetMigration(true, "")
	rcur := createRecurringMandate(t, "MDT-RCUR", SequenceRecurring)
	fnal := createRecurringMandate(t, "MDT-FNAL", SequenceFinal)

	o := createTestOrder(t, "SDD-100", DatePreferenceNow)
	addTestLine(t, o, oneOff, "L001", "10.00", nil)
	addTestLine(t, o, first, "L002", "20.00", nil)
	addTestLine(t, o, first, "L003", "5.00", nil)
	addTestLine(t, o, rcur, "L004", "30.00", nil)
	addTestLine(t, o, fnal, "L005", "40.00", nil)

	changes, split, err := AdvanceOrder(o, NewMandateSet(oneOff, first, rcur, fnal), sent)
	require.NoError(t, err)

	assert.True(t, split.First.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, split.Recurring.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, split.Total.Equal(o.Total))

	require.Len(t, changes, 4)
	byRef := make(map[string]MandateChange)
	for _, c := range changes {
		byRef[c.Reference] = c
	}
	assert.Equal(t, CodeOneOff, byRef["MDT-OOFF"].BilledAs)
	assert.Equal(t, MandateStateExpired, byRef["MDT-OOFF"].ToState)
	assert.Equal(t, CodeFirst, byRef["MDT-FRST"].BilledAs)
	assert.Equal(t, SequenceRecurring, byRef["MDT-FRST"].ToSequence)
	assert.Equal(t, MandateStateValid, byRef["MDT-RCUR"].ToState)
	assert.Equal(t, MandateStateExpired, byRef["MDT-FNAL"].ToState)

	day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, m := range []*Mandate{oneOff, first, rcur, fnal} {
		require.NotNil(t, m.LastDebitDate, m.Reference)
		assert.Equal(t, day, *m.LastDebitDate, m.Reference)
	}
	assert.Equal(t, MandateStateExpired, oneOff.State)
	assert.Equal(t, MandateStateExpired, fnal.State)
	assert.Equal(t, SequenceRecurring, first.SequenceType)
	assert.True(t, first.SEPAMigrated)
	assert.Equal(t, SequenceRecurring, rcur.SequenceType)
	assert.Equal(t, MandateStateValid, rcur.State)
}

func TestAdvanceOrder_FirstClearsMigrationAndPreviousBank(t *testing.T) {
	m := createTestMandate(t, "MDT-LEGACY", MandateTypeRecurrent)
	m.SetMigration(false, "OLD-1")
	require.NoError(t, m.Validate(testToday))
	m.PreviousBankAccount = ingAccount

	o := createTestOrder(t, "SDD-101", DatePreferenceNow)
	addTestLine(t, o, m, "L001", "12.00", nil)

	_, _, err := AdvanceOrder(o, NewMandateSet(m), testToday)
	require.NoError(t, err)

	assert.True(t, m.SEPAMigrated)
	assert.Equal(t, SequenceRecurring, m.SequenceType)
	assert.True(t, m.PreviousBankAccount.IsZero())

	// the next file bills the mandate as RCUR without amendment
	next := createTestOrder(t, "SDD-102", DatePreferenceNow)
	addTestLine(t, next, m, "L001", "12.00", nil)
	_, doc := buildOne(t, next, m)
	assert.Equal(t, "RCUR", doc.Initn.PaymentInfo[0].TypeInfo.SequenceType)
	assert.Nil(t, doc.Initn.PaymentInfo[0].Transactions[0].DirectDebit.Mandate.AmendmentDetails)
}

func TestAdvanceOrder_AmountMismatchLeavesMandatesUntouched(t *testing.T) {
	m := createValidMandate(t, "MDT-001", MandateTypeOneOff)
	o := createTestOrder(t, "SDD-103", DatePreferenceNow)
	addTestLine(t, o, m, "L001", "12.00", nil)
	o.Total = decimal.RequireFromString("13.00")

	changes, _, err := AdvanceOrder(o, NewMandateSet(m), testToday)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmountMismatch))
	assert.Nil(t, changes)
	assert.Equal(t, MandateStateValid, m.State)
	assert.Nil(t, m.LastDebitDate)
}

func TestAdvanceOrder_MissingMandate(t *testing.T) {
	m := createValidMandate(t, "MDT-001", MandateTypeOneOff)
	o := createTestOrder(t, "SDD-104", DatePreferenceNow)
	addTestLine(t, o, m, "L001", "12.00", nil)

	_, _, err := AdvanceOrder(o, NewMandateSet(), testToday)
	assert.True(t, errors.Is(err, ErrInvalidMandate))
	assert.Nil(t, m.LastDebitDate)
}

func TestAdvanceOrders_SharedMandateAdvancedOnce(t *testing.T) {
	m := createValidMandate(t, "MDT-SHARED", MandateTypeRecurrent)
	o1 := createTestOrder(t, "SDD-105", DatePreferenceNow)
	o2 := createTestOrder(t, "SDD-106", DatePreferenceNow)
	addTestLine(t, o1, m, "L001", "8.00", nil)
	addTestLine(t, o2, m, "L002", "9.00", nil)

	changes, splits, err := AdvanceOrders([]*PaymentOrder{o1, o2}, NewMandateSet(m), testToday)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, CodeFirst, changes[0].BilledAs)
	require.Len(t, splits, 2)
	assert.Equal(t, "8.00", splits[0].First.StringFixed(2))
	assert.Equal(t, "9.00", splits[1].First.StringFixed(2))
	assert.True(t, splits[1].Recurring.IsZero())
	assert.Equal(t, SequenceRecurring, m.SequenceType)
}

func TestAdvanceFile_BooksBilledSequence(t *testing.T) {
	m := createValidMandate(t, "MDT-EDIT", MandateTypeRecurrent)
	o := createTestOrder(t, "SDD-107", DatePreferenceNow)
	addTestLine(t, o, m, "L001", "12.50", nil)

	result, err := newTestBuilder().Build(Batch{Orders: []*PaymentOrder{o}, Mandates: NewMandateSet(m)}, BuildOptions{Today: testToday})
	require.NoError(t, err)
	require.Len(t, result.File.Mandates, 1)
	assert.Equal(t, CodeFirst, result.File.Mandates[0].Sequence)
	assert.Equal(t, result.File.ID, result.File.Mandates[0].FileID)

	// edited between generation and sending
	require.NoError(t, m.SetSequenceType(SequenceFinal))

	changes, splits, err := AdvanceFile(result.File, []*PaymentOrder{o}, NewMandateSet(m), testToday)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, CodeFirst, changes[0].BilledAs)
	assert.Equal(t, "12.50", splits[0].First.StringFixed(2))
	assert.True(t, splits[0].Recurring.IsZero())
	assert.Equal(t, MandateStateValid, m.State)
	assert.Equal(t, SequenceRecurring, m.SequenceType)
}

func TestAdvanceOrder_BumpsVersionOnce(t *testing.T) {
	oneOff := createValidMandate(t, "MDT-OOFF", MandateTypeOneOff)
	first := createValidMandate(t, "MDT-FRST", MandateTypeRecurrent)
	rcur := createRecurringMandate(t, "MDT-RCUR", SequenceRecurring)
	o := createTestOrder(t, "SDD-108", DatePreferenceNow)
	addTestLine(t, o, oneOff, "L001", "1.00", nil)
	addTestLine(t, o, first, "L002", "2.00", nil)
	addTestLine(t, o, rcur, "L003", "3.00", nil)

	before := map[*Mandate]int{oneOff: oneOff.Version, first: first.Version, rcur: rcur.Version}
	_, _, err := AdvanceOrder(o, NewMandateSet(oneOff, first, rcur), testToday)
	require.NoError(t, err)

	for m, v := range before {
		assert.Equal(t, v+1, m.Version, m.Reference)
	}
}
