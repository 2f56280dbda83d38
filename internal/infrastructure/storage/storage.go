package storage

import (
	"context"
	"errors"
	"time"

	infraconfig "github.com/erp/directdebit/internal/infrastructure/config"
	"go.uber.org/zap"
)

// FileStorage is what the export service needs from a storage backend
type FileStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	Download(ctx context.Context, storageKey string) ([]byte, error)
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, storageKey string) error
}

// New creates the storage backend selected by cfg.Type
func New(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (FileStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case "", "memory":
		logger.Warn("Using in-memory file storage, generated files are lost on restart")
		return NewMemoryFileStorage(), nil
	case "s3":
		s3Storage, err := NewS3FileStorage(cfg, WithLogger(logger.Named("storage")))
		if err != nil {
			return nil, err
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3Storage, nil
	default:
		return nil, errors.New("unsupported storage type: " + cfg.Type)
	}
}

var (
	_ FileStorage = (*MemoryFileStorage)(nil)
	_ FileStorage = (*S3FileStorage)(nil)
)
