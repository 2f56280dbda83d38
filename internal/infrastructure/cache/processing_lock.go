package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockPrefix namespaces processing lock keys in Redis
const DefaultLockPrefix = "lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisProcessingLock guards payment orders across service instances
type RedisProcessingLock struct {
	client    *redis.Client
	keyPrefix string
	owner     string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisProcessingLock connects to Redis and creates a lock
func NewRedisProcessingLock(cfg RedisConfig) (*RedisProcessingLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisProcessingLockWithClient(client, DefaultLockPrefix), nil
}

// NewRedisProcessingLockWithClient creates a lock with an existing Redis client
func NewRedisProcessingLockWithClient(client *redis.Client, keyPrefix string) *RedisProcessingLock {
	if keyPrefix == "" {
		keyPrefix = DefaultLockPrefix
	}
	return &RedisProcessingLock{
		client:    client,
		keyPrefix: keyPrefix,
		owner:     uuid.NewString(),
		tokens:    make(map[string]string),
	}
}

// Acquire takes the lock with SET NX and a TTL. It returns false when
// another holder owns the key.
func (l *RedisProcessingLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := l.owner + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees a lock taken by this instance
func (l *RedisProcessingLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisProcessingLock) Close() error {
	return l.client.Close()
}

// lockEntry is a held in-memory lock
type lockEntry struct {
	expiresAt time.Time
}

// InMemoryProcessingLock guards payment orders within one process.
// It is suitable for single-instance deployments and testing.
type InMemoryProcessingLock struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

// NewInMemoryProcessingLock creates a new in-memory lock
func NewInMemoryProcessingLock() *InMemoryProcessingLock {
	return &InMemoryProcessingLock{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock unless a live holder owns it
func (l *InMemoryProcessingLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.locks[key]; held && now.Before(e.expiresAt) {
		return false, nil
	}
	l.locks[key] = lockEntry{expiresAt: now.Add(ttl)}

	// expired entries are dropped lazily
	for k, e := range l.locks {
		if !now.Before(e.expiresAt) {
			delete(l.locks, k)
		}
	}
	return true, nil
}

// Release frees the lock
func (l *InMemoryProcessingLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// Size returns the number of held locks
func (l *InMemoryProcessingLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
