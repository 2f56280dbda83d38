package directdebit

import (
	"errors"
	"testing"

	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFile(t *testing.T) *SddFile {
	t.Helper()
	m := createValidMandate(t, "MDT-001", MandateTypeOneOff)
	o := createTestOrder(t, "SDD/2025/07", DatePreferenceNow)
	addTestLine(t, o, m, "L001", "10.00", nil)
	result, err := newTestBuilder().Build(Batch{Orders: []*PaymentOrder{o}, Mandates: NewMandateSet(m)}, BuildOptions{Today: testToday})
	require.NoError(t, err)
	return result.File
}

func TestSddFile_Lifecycle(t *testing.T) {
	f := createTestFile(t)
	assert.Equal(t, "sdd_SDD-2025-07.xml", f.Filename)
	assert.Equal(t, FileStateDraft, f.State)
	assert.True(t, f.CanCancel())
	require.Len(t, f.Orders, 1)
	assert.Equal(t, f.ID, f.Orders[0].FileID)

	events := f.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeSddFileGenerated, events[0].EventType())

	require.NoError(t, f.MarkSent(testNow))
	assert.Equal(t, FileStateSent, f.State)
	assert.False(t, f.CanCancel())
	assert.Equal(t, testNow, *f.SentAt)
	sent, ok := f.GetDomainEvents()[1].(*SddFileSentEvent)
	require.True(t, ok)
	assert.Equal(t, f.OrderIDs(), sent.OrderIDs)

	err := f.MarkSent(testNow)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	require.NoError(t, f.MarkReconciled())
	assert.Equal(t, "Reconciled", f.State.Label())
	assert.Error(t, f.MarkReconciled())
}

func TestSddFile_ReconcileRequiresSent(t *testing.T) {
	f := createTestFile(t)
	assert.True(t, errors.Is(f.MarkReconciled(), shared.ErrInvalidState))
}
