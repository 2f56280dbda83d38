package directdebit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Results of ProcessOrder that did not export anything
const (
	ResultRecordDeleted    = "record deleted"
	ResultAlreadyProcessed = "already processed"
)

// DefaultMarkBlockSize is the number of orders flagged per write
const DefaultMarkBlockSize = 5

// ErrOrderLocked is returned when another job is processing the same order
var ErrOrderLocked = errors.New("payment order is being processed by another job")

// ConfirmService marks payment orders for delayed processing and runs the
// processing job of one order
type ConfirmService struct {
	orders    directdebit.PaymentOrderRepository
	exporter  FileExporter
	queue     JobQueue
	lock      ProcessingLock
	blockSize int
	lockTTL   time.Duration
	logger    *zap.Logger
}

// ConfirmServiceConfig holds the collaborators of the confirm service
type ConfirmServiceConfig struct {
	Orders    directdebit.PaymentOrderRepository
	Exporter  FileExporter
	Queue     JobQueue
	Lock      ProcessingLock
	BlockSize int
	LockTTL   time.Duration
	Logger    *zap.Logger
}

// NewConfirmService creates a new ConfirmService
func NewConfirmService(cfg ConfirmServiceConfig) *ConfirmService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultMarkBlockSize
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ConfirmService{
		orders:    cfg.Orders,
		exporter:  cfg.Exporter,
		queue:     cfg.Queue,
		lock:      cfg.Lock,
		blockSize: blockSize,
		lockTTL:   ttl,
		logger:    logger,
	}
}

// SetQueue sets the job queue. The queue executes ProcessOrder, so it can
// only be created after the service.
func (s *ConfirmService) SetQueue(queue JobQueue) {
	s.queue = queue
}

// MarkForProcessing flags the orders and schedules one job per order at eta
func (s *ConfirmService) MarkForProcessing(ctx context.Context, orderIDs []uuid.UUID, eta time.Time) ([]JobAssignment, error) {
	if s.queue == nil {
		return nil, errors.New("no job queue configured")
	}
	for _, block := range chunk(orderIDs, s.blockSize) {
		if err := s.orders.SetToProcess(ctx, block, true); err != nil {
			return nil, fmt.Errorf("failed to mark payment orders: %w", err)
		}
	}

	assignments := make([]JobAssignment, 0, len(orderIDs))
	for _, id := range orderIDs {
		jobID, err := s.queue.Enqueue(ctx, id, eta)
		if err != nil {
			return assignments, fmt.Errorf("failed to enqueue payment order %s: %w", id, err)
		}
		if err := s.orders.AssignJob(ctx, id, jobID); err != nil {
			return assignments, fmt.Errorf("failed to store job of payment order %s: %w", id, err)
		}
		assignments = append(assignments, JobAssignment{OrderID: id, JobID: jobID})
		s.logger.Info("Payment order scheduled for processing",
			zap.String("order_id", id.String()),
			zap.String("job_id", jobID),
			zap.Time("eta", eta))
	}
	return assignments, nil
}

// UnmarkForProcessing clears the flag of the orders and cancels the jobs
// that did not start yet. It returns the number of cancelled jobs.
func (s *ConfirmService) UnmarkForProcessing(ctx context.Context, orderIDs []uuid.UUID) (int, error) {
	for _, block := range chunk(orderIDs, s.blockSize) {
		if err := s.orders.SetToProcess(ctx, block, false); err != nil {
			return 0, fmt.Errorf("failed to unmark payment orders: %w", err)
		}
	}
	if s.queue == nil {
		return 0, nil
	}

	orders, err := s.orders.FindWithJob(ctx, orderIDs, false)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, o := range orders {
		ok, err := s.queue.Cancel(ctx, o.PostJobID)
		if err != nil {
			return cancelled, fmt.Errorf("failed to cancel job %s: %w", o.PostJobID, err)
		}
		if ok {
			cancelled++
			s.logger.Info("Payment order job cancelled",
				zap.String("order_id", o.ID.String()),
				zap.String("job_id", o.PostJobID))
		}
	}
	return cancelled, nil
}

// ProcessOrder is the body of the delayed job: it confirms a draft order,
// then exports and sends it in its own file
func (s *ConfirmService) ProcessOrder(ctx context.Context, orderID uuid.UUID) (string, error) {
	if s.lock != nil {
		key := "sdd:order:" + orderID.String()
		ok, err := s.lock.Acquire(ctx, key, s.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to lock payment order: %w", err)
		}
		if !ok {
			return "", ErrOrderLocked
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), key); err != nil {
				s.logger.Warn("Failed to release payment order lock", zap.String("order_id", orderID.String()), zap.Error(err))
			}
		}()
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return ResultRecordDeleted, nil
	}
	if order.State == directdebit.OrderStateDone {
		return ResultAlreadyProcessed, nil
	}
	if order.State == directdebit.OrderStateDraft {
		if err := order.Confirm(); err != nil {
			return "", err
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return "", fmt.Errorf("failed to confirm payment order: %w", err)
		}
	}

	batchBooking := true
	file, err := s.exporter.CreateFile(ctx, CreateFileInput{
		OrderIDs:     []uuid.UUID{order.ID},
		ChargeBearer: directdebit.ChargeBearerServiceLevel,
		BatchBooking: &batchBooking,
	})
	if err != nil {
		return "", err
	}
	if _, err := s.exporter.SendFile(ctx, file.ID); err != nil {
		return "", err
	}

	s.logger.Info("Payment order processed",
		zap.String("order_id", order.ID.String()),
		zap.String("file_id", file.ID.String()))
	return fmt.Sprintf("file %s sent", file.Filename), nil
}

func chunk(ids []uuid.UUID, size int) [][]uuid.UUID {
	var blocks [][]uuid.UUID
	for start := 0; start < len(ids); start += size {
		blocks = append(blocks, ids[start:min(start+size, len(ids))])
	}
	return blocks
}
