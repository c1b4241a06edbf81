package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vanityline/vanityline/pkg/cache"
)

// ErrLocked is returned by TryLock when another holder owns the key.
var ErrLocked = errors.New("lock is held by another instance")

// Locker gives one scheduler replica exclusive use of a job tick.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

type RedisLocker struct {
	redis *cache.RedisCache
}

func NewRedisLocker(redis *cache.RedisCache) *RedisLocker {
	return &RedisLocker{redis: redis}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.redis.TryLock(ctx, key, ttl)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return func() {
		// The TTL frees the key if the release fails.
		_ = lock.Release(context.Background())
	}, nil
}

// LocalLocker serialises jobs inside one process. Used when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, ErrLocked
	}
	l.held[key] = true

	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}
