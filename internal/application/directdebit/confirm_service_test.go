package directdebit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConfirmService_MarkForProcessing(t *testing.T) {
	ctx := context.Background()
	orders := new(MockPaymentOrderRepository)
	queue := new(MockJobQueue)
	service := NewConfirmService(ConfirmServiceConfig{Orders: orders, Queue: queue, BlockSize: 2})

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	eta := testNow.Add(time.Hour)

	orders.On("SetToProcess", ctx, ids[:2], true).Return(nil).Once()
	orders.On("SetToProcess", ctx, ids[2:], true).Return(nil).Once()
	for i, id := range ids {
		jobID := "job-" + string(rune('a'+i))
		queue.On("Enqueue", ctx, id, eta).Return(jobID, nil)
		orders.On("AssignJob", ctx, id, jobID).Return(nil)
	}

	assignments, err := service.MarkForProcessing(ctx, ids, eta)

	require.NoError(t, err)
	require.Len(t, assignments, 3)
	assert.Equal(t, JobAssignment{OrderID: ids[0], JobID: "job-a"}, assignments[0])
	assert.Equal(t, JobAssignment{OrderID: ids[2], JobID: "job-c"}, assignments[2])
	orders.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestConfirmService_MarkForProcessing_EnqueueFails(t *testing.T) {
	ctx := context.Background()
	orders := new(MockPaymentOrderRepository)
	queue := new(MockJobQueue)
	service := NewConfirmService(ConfirmServiceConfig{Orders: orders, Queue: queue})

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	orders.On("SetToProcess", ctx, ids, true).Return(nil)
	queue.On("Enqueue", ctx, ids[0], testNow).Return("job-1", nil)
	orders.On("AssignJob", ctx, ids[0], "job-1").Return(nil)
	queue.On("Enqueue", ctx, ids[1], testNow).Return("", errors.New("queue stopped"))

	assignments, err := service.MarkForProcessing(ctx, ids, testNow)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue stopped")
	assert.Len(t, assignments, 1)
}

func TestConfirmService_MarkForProcessing_NoQueue(t *testing.T) {
	service := NewConfirmService(ConfirmServiceConfig{Orders: new(MockPaymentOrderRepository)})

	_, err := service.MarkForProcessing(context.Background(), []uuid.UUID{uuid.New()}, testNow)
	assert.Error(t, err)
}

func TestConfirmService_UnmarkForProcessing(t *testing.T) {
	ctx := context.Background()
	orders := new(MockPaymentOrderRepository)
	queue := new(MockJobQueue)
	service := NewConfirmService(ConfirmServiceConfig{Orders: orders, Queue: queue})

	m := createValidMandate(t, "MD-001", directdebit.MandateTypeOneOff)
	pending := createOpenOrder(t, "ORD-1", m)
	pending.AssignJob("job-1")
	started := createOpenOrder(t, "ORD-2", m)
	started.AssignJob("job-2")
	ids := []uuid.UUID{pending.ID, started.ID}

	orders.On("SetToProcess", ctx, ids, false).Return(nil)
	orders.On("FindWithJob", ctx, ids, false).Return([]*directdebit.PaymentOrder{pending, started}, nil)
	queue.On("Cancel", ctx, "job-1").Return(true, nil)
	queue.On("Cancel", ctx, "job-2").Return(false, nil)

	cancelled, err := service.UnmarkForProcessing(ctx, ids)

	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
	orders.AssertExpectations(t)
	queue.AssertExpectations(t)
}

type confirmFixture struct {
	orders   *MockPaymentOrderRepository
	exporter *MockFileExporter
	lock     *MockProcessingLock
	service  *ConfirmService
}

func newConfirmFixture() *confirmFixture {
	f := &confirmFixture{
		orders:   new(MockPaymentOrderRepository),
		exporter: new(MockFileExporter),
		lock:     new(MockProcessingLock),
	}
	f.service = NewConfirmService(ConfirmServiceConfig{
		Orders:   f.orders,
		Exporter: f.exporter,
		Lock:     f.lock,
	})
	return f
}

func TestConfirmService_ProcessOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("draft order is confirmed, exported and sent", func(t *testing.T) {
		f := newConfirmFixture()
		m := createValidMandate(t, "MD-001", directdebit.MandateTypeOneOff)
		order := createOpenOrder(t, "ORD-1", m)
		order.State = directdebit.OrderStateDraft
		key := "sdd:order:" + order.ID.String()
		fileID := uuid.New()

		f.lock.On("Acquire", ctx, key, 10*time.Minute).Return(true, nil)
		f.lock.On("Release", mock.Anything, key).Return(nil)
		f.orders.On("FindByID", ctx, order.ID).Return(order, nil)
		f.orders.On("Save", ctx, order).Return(nil)
		f.exporter.On("CreateFile", ctx, mock.MatchedBy(func(in CreateFileInput) bool {
			return len(in.OrderIDs) == 1 && in.OrderIDs[0] == order.ID &&
				in.ChargeBearer == directdebit.ChargeBearerServiceLevel &&
				in.BatchBooking != nil && *in.BatchBooking
		})).Return(&FileResponse{ID: fileID, Filename: "sdd_ORD-1.xml"}, nil)
		f.exporter.On("SendFile", ctx, fileID).Return(&FileResponse{ID: fileID, State: "sent"}, nil)

		result, err := f.service.ProcessOrder(ctx, order.ID)

		require.NoError(t, err)
		assert.Equal(t, "file sdd_ORD-1.xml sent", result)
		assert.Equal(t, directdebit.OrderStateOpen, order.State)
		f.lock.AssertExpectations(t)
		f.orders.AssertExpectations(t)
		f.exporter.AssertExpectations(t)
	})

	t.Run("deleted order", func(t *testing.T) {
		f := newConfirmFixture()
		id := uuid.New()
		f.lock.On("Acquire", ctx, mock.Anything, mock.Anything).Return(true, nil)
		f.lock.On("Release", mock.Anything, mock.Anything).Return(nil)
		f.orders.On("FindByID", ctx, id).Return(nil, nil)

		result, err := f.service.ProcessOrder(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, ResultRecordDeleted, result)
		f.exporter.AssertNotCalled(t, "CreateFile", mock.Anything, mock.Anything)
	})

	t.Run("done order", func(t *testing.T) {
		f := newConfirmFixture()
		m := createValidMandate(t, "MD-001", directdebit.MandateTypeOneOff)
		order := createOpenOrder(t, "ORD-1", m)
		require.NoError(t, order.MarkDone(testNow))
		f.lock.On("Acquire", ctx, mock.Anything, mock.Anything).Return(true, nil)
		f.lock.On("Release", mock.Anything, mock.Anything).Return(nil)
		f.orders.On("FindByID", ctx, order.ID).Return(order, nil)

		result, err := f.service.ProcessOrder(ctx, order.ID)

		require.NoError(t, err)
		assert.Equal(t, ResultAlreadyProcessed, result)
		f.exporter.AssertNotCalled(t, "CreateFile", mock.Anything, mock.Anything)
	})

	t.Run("lock held by another job", func(t *testing.T) {
		f := newConfirmFixture()
		f.lock.On("Acquire", ctx, mock.Anything, mock.Anything).Return(false, nil)

		_, err := f.service.ProcessOrder(ctx, uuid.New())

		assert.ErrorIs(t, err, ErrOrderLocked)
		f.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		f.lock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("export failure is returned and the lock released", func(t *testing.T) {
		f := newConfirmFixture()
		m := createValidMandate(t, "MD-001", directdebit.MandateTypeOneOff)
		order := createOpenOrder(t, "ORD-1", m)
		f.lock.On("Acquire", ctx, mock.Anything, mock.Anything).Return(true, nil)
		f.lock.On("Release", mock.Anything, mock.Anything).Return(nil).Once()
		f.orders.On("FindByID", ctx, order.ID).Return(order, nil)
		f.exporter.On("CreateFile", ctx, mock.Anything).Return(nil, directdebit.ErrInvalidMandate)

		_, err := f.service.ProcessOrder(ctx, order.ID)

		assert.ErrorIs(t, err, directdebit.ErrInvalidMandate)
		f.exporter.AssertNotCalled(t, "SendFile", mock.Anything, mock.Anything)
		f.lock.AssertExpectations(t)
	})
}

func TestChunk(t *testing.T) {
	ids := make([]uuid.UUID, 7)
	for i := range ids {
		ids[i] = uuid.New()
	}

	blocks := chunk(ids, 5)

	require.Len(t, blocks, 2)
	assert.Len(t, blocks[0], 5)
	assert.Len(t, blocks[1], 2)
	assert.Empty(t, chunk(nil, 5))
}
