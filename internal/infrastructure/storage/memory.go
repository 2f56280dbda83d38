package storage

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"
)

// ErrObjectNotFound is returned when a stored object does not exist
var ErrObjectNotFound = errors.New("object not found")

// MemoryFileStorage keeps files in process memory. Download URLs point to
// BaseURL and are not signed. Use it for development and tests.
type MemoryFileStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryFileStorage creates an empty MemoryFileStorage
func NewMemoryFileStorage() *MemoryFileStorage {
	return &MemoryFileStorage{
		BaseURL: "memory://sdd-files",
		objects: make(map[string]memoryObject),
	}
}

// Upload stores a copy of data
func (s *MemoryFileStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Download returns a copy of a stored object
func (s *MemoryFileStorage) Download(ctx context.Context, storageKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// GenerateDownloadURL returns an unsigned URL for a stored object
func (s *MemoryFileStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	if exists, _ := s.ObjectExists(ctx, storageKey); !exists {
		return "", time.Time{}, ErrObjectNotFound
	}
	if expiresIn <= 0 {
		expiresIn = DefaultPresignExpiration
	}
	expiresAt := time.Now().Add(expiresIn)
	u := s.BaseURL + "/" + url.PathEscape(storageKey) + "?expires=" + url.QueryEscape(expiresAt.UTC().Format(time.RFC3339))
	return u, expiresAt, nil
}

// DeleteObject removes an object. Deleting a missing object succeeds.
func (s *MemoryFileStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

// ObjectExists checks if an object is stored
func (s *MemoryFileStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[storageKey]
	return ok, nil
}

// Len returns the number of stored objects
func (s *MemoryFileStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
