package lock

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker implements Locker on top of PostgreSQL session advisory
// locks, making the exclusion hold across server instances sharing a
// database. Each held key pins a dedicated pooled connection because
// advisory locks are scoped to the session that took them.
type AdvisoryLocker struct {
	pool    *pgxpool.Pool
	timeout time.Duration

	mu    sync.Mutex
	conns map[string]*pgxpool.Conn
}

// NewAdvisoryLocker returns a database-backed locker. A non-positive
// timeout falls back to DefaultTimeout.
func NewAdvisoryLocker(pool *pgxpool.Pool, timeout time.Duration) *AdvisoryLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AdvisoryLocker{
		pool:    pool,
		timeout: timeout,
		conns:   make(map[string]*pgxpool.Conn),
	}
}

// Acquire blocks with periodic retries on pg_try_advisory_lock until the
// key is free, the context is canceled, or the timeout elapses.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key string) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	id := advisoryKeyID(key)
	deadline := time.Now().Add(l.timeout)
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		var locked bool
		if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&locked); err != nil {
			conn.Release()
			return err
		}
		if locked {
			l.mu.Lock()
			l.conns[key] = conn
			l.mu.Unlock()
			return nil
		}
		if time.Now().After(deadline) {
			conn.Release()
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			conn.Release()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release unlocks the key and returns its pinned connection to the pool.
// Releasing a key that is not held is a no-op.
func (l *AdvisoryLocker) Release(key string) {
	l.mu.Lock()
	conn, ok := l.conns[key]
	delete(l.conns, key)
	l.mu.Unlock()
	if !ok {
		return
	}

	// Unlock on a fresh context: the request context may already be
	// canceled and the session lock must still be dropped.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryKeyID(key)); err != nil {
		log.Printf("[ERROR] lock: advisory unlock %q: %v", key, err)
	}
	conn.Release()
}

// advisoryKeyID maps a string key onto the bigint space pg advisory locks
// use. FNV-1a keeps the mapping stable across processes.
func advisoryKeyID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
