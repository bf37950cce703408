// Package lock provides named mutual exclusion keyed by arbitrary strings.
// Recurrence expansion uses it to guarantee at most one expansion per user
// in flight at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the
// configured wait budget.
var ErrTimeout = errors.New("lock acquire timed out")

// DefaultTimeout bounds how long Acquire waits before giving up so a
// crashed holder cannot stall callers forever.
const DefaultTimeout = 10 * time.Second

// retryInterval is the poll period between acquisition attempts.
const retryInterval = 25 * time.Millisecond

// Locker serializes critical sections across concurrent requests sharing
// a key. Acquire blocks until the key is free, the context is canceled,
// or the timeout elapses. Every successful Acquire must be paired with
// exactly one Release; re-entrant acquisition by the same caller is not
// supported and will deadlock until the timeout.
type Locker interface {
	Acquire(ctx context.Context, key string) error
	Release(key string)
}

// EventsKey is the per-user key guarding recurring event materialization.
func EventsKey(userID int64) string {
	return fmt.Sprintf("events-%d", userID)
}
