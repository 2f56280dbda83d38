// Package directdebit orchestrates the SEPA Direct Debit use cases: mandate
// maintenance, payment order export and delayed order processing.
package directdebit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FileStorage archives generated files and hands out download links
type FileStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, storageKey string) error
}

// JobQueue schedules the delayed processing of payment orders
type JobQueue interface {
	// Enqueue schedules the order to be processed at eta and returns the job id
	Enqueue(ctx context.Context, orderID uuid.UUID, eta time.Time) (string, error)
	// Cancel cancels a job that has not started yet. It reports whether the
	// job was cancelled.
	Cancel(ctx context.Context, jobID string) (bool, error)
}

// ProcessingLock guards a payment order against concurrent processing
type ProcessingLock interface {
	// Acquire takes the lock for key. It returns false when the lock is held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// FileExporter creates and sends direct debit files
type FileExporter interface {
	CreateFile(ctx context.Context, input CreateFileInput) (*FileResponse, error)
	SendFile(ctx context.Context, fileID uuid.UUID) (*FileResponse, error)
}
