package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enqueue errors
var (
	ErrSchedulerNotRunning = errors.New("order job queue is not running")
	ErrJobQueueFull        = errors.New("order job registry is full")
)

// JobStatus represents the status of a queued order job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"   // waiting for its eta
	JobStatusEnqueued  JobStatus = "ENQUEUED"  // handed to the workers
	JobStatusStarted   JobStatus = "STARTED"   // running
	JobStatusDone      JobStatus = "DONE"      // finished with a result
	JobStatusFailed    JobStatus = "FAILED"    // retries exhausted
	JobStatusCancelled JobStatus = "CANCELLED" // cancelled before it started
)

// Job is the delayed processing of one payment order
type Job struct {
	ID          string
	OrderID     uuid.UUID
	ETA         time.Time
	Status      JobStatus
	Result      string
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewJob creates a pending job for an order
func NewJob(orderID uuid.UUID, eta time.Time, maxRetries int) *Job {
	return &Job{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		ETA:        eta,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusStarted
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as done with its result
func (j *Job) Complete(result string) {
	now := time.Now()
	j.Status = JobStatusDone
	j.Result = result
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the job back to pending with a later eta
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	j.ETA = time.Now().Add(delay)
	j.CompletedAt = nil
}

// Cancellable reports whether the job has not started yet
func (j *Job) Cancellable() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusEnqueued
}

// OrderProcessor runs the body of an order job and returns its result
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, orderID uuid.UUID) (string, error)
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	PollInterval      time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 2,
		QueueSize:         100,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
		PollInterval:      time.Second,
	}
}

// OrderJobQueue runs payment order jobs on a worker pool once their eta
// is reached. Jobs live in memory and do not survive a restart.
type OrderJobQueue struct {
	config    SchedulerConfig
	processor OrderProcessor
	logger    *zap.Logger

	jobs      chan *Job
	registry  map[string]*Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewOrderJobQueue creates a new queue instance
func NewOrderJobQueue(config SchedulerConfig, processor OrderProcessor, logger *zap.Logger) *OrderJobQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultSchedulerConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = defaults.MaxConcurrentJobs
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	return &OrderJobQueue{
		config:    config,
		processor: processor,
		logger:    logger.Named("sdd.queue"),
		jobs:      make(chan *Job, config.QueueSize),
		registry:  make(map[string]*Job),
	}
}

// Start starts the workers and the eta dispatcher
func (q *OrderJobQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.MaxConcurrentJobs; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.dispatchLoop(ctx)

	q.logger.Info("Order job queue started",
		zap.Int("workers", q.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", q.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the queue. Jobs that did not start stay pending.
func (q *OrderJobQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Order job queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.logger.Warn("Order job queue stop timed out")
		return ctx.Err()
	}
}

// Enqueue schedules the order to be processed at eta and returns the job id
func (q *OrderJobQueue) Enqueue(ctx context.Context, orderID uuid.UUID, eta time.Time) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.isRunning {
		return "", ErrSchedulerNotRunning
	}
	if len(q.registry) >= q.config.QueueSize*10 {
		q.pruneLocked()
		if len(q.registry) >= q.config.QueueSize*10 {
			return "", ErrJobQueueFull
		}
	}

	job := NewJob(orderID, eta, q.config.RetryAttempts)
	q.registry[job.ID] = job
	q.dispatchLocked(time.Now())

	q.logger.Debug("Job enqueued",
		zap.String("job_id", job.ID),
		zap.String("order_id", orderID.String()),
		zap.Time("eta", eta),
	)
	return job.ID, nil
}

// Cancel cancels a job that is still pending or enqueued. Unknown, running
// and finished jobs are reported as not cancelled.
func (q *OrderJobQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.registry[jobID]
	if !ok || !job.Cancellable() {
		return false, nil
	}
	job.Status = JobStatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	q.logger.Info("Job cancelled",
		zap.String("job_id", job.ID),
		zap.String("order_id", job.OrderID.String()),
	)
	return true, nil
}

// Job returns a snapshot of a job
func (q *OrderJobQueue) Job(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.registry[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (q *OrderJobQueue) dispatchLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			q.mu.Lock()
			q.dispatchLocked(now)
			q.mu.Unlock()
		}
	}
}

// dispatchLocked hands every due pending job to the workers
func (q *OrderJobQueue) dispatchLocked(now time.Time) {
	for _, job := range q.registry {
		if job.Status != JobStatusPending || job.ETA.After(now) {
			continue
		}
		select {
		case q.jobs <- job:
			job.Status = JobStatusEnqueued
		default:
			// workers are saturated, the next tick retries
			return
		}
	}
}

// pruneLocked forgets finished jobs
func (q *OrderJobQueue) pruneLocked() {
	for id, job := range q.registry {
		switch job.Status {
		case JobStatusDone, JobStatusFailed, JobStatusCancelled:
			delete(q.registry, id)
		}
	}
}

// worker processes jobs from the queue
func (q *OrderJobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (q *OrderJobQueue) processJob(ctx context.Context, job *Job, workerID int) {
	q.mu.Lock()
	if job.Status != JobStatusEnqueued {
		// cancelled while waiting in the channel
		q.mu.Unlock()
		return
	}
	job.Start()
	orderID := job.OrderID
	q.mu.Unlock()

	q.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("order_id", orderID.String()),
	)

	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	result, err := q.processor.ProcessOrder(jobCtx, orderID)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		job.Fail(err.Error())
		q.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		if job.ShouldRetry() {
			job.ScheduleRetry(q.config.RetryDelay)
			q.logger.Info("Job scheduled for retry",
				zap.String("job_id", job.ID),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
			)
		}
		return
	}

	job.Complete(result)
	q.logger.Info("Job completed successfully",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("result", result),
	)
}
