package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker. It is only safe within a single
// server instance; deployments running more than one instance must use
// AdvisoryLocker instead.
type MemoryLocker struct {
	mu      sync.Mutex
	held    map[string]struct{}
	timeout time.Duration
}

// NewMemoryLocker returns an in-process locker. A non-positive timeout
// falls back to DefaultTimeout.
func NewMemoryLocker(timeout time.Duration) *MemoryLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MemoryLocker{
		held:    make(map[string]struct{}),
		timeout: timeout,
	}
}

// Acquire blocks with periodic retries until the key is free, the context
// is canceled, or the timeout elapses.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) error {
	deadline := time.Now().Add(l.timeout)
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		if l.tryAcquire(key) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *MemoryLocker) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release clears the mark for key. Releasing a key that is not held is a
// no-op so callers can release unconditionally on every exit path.
func (l *MemoryLocker) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
