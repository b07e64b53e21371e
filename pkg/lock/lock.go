// Package lock provides advisory per-session mutual exclusion between hook
// processes.
//
// Acquisition is bounded: a caller that cannot get the lock within its timeout
// gets false back and is expected to skip the guarded step. Nothing in this
// package returns errors to callers; failures are logged and reported as a
// failed acquisition.
package lock

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultTimeout bounds how long Acquire waits for a held lock.
	DefaultTimeout = 5 * time.Second

	// DefaultStale is the age after which a lock is considered abandoned.
	DefaultStale = 10 * time.Second

	// DefaultPollInterval is the sleep between acquisition attempts.
	DefaultPollInterval = 50 * time.Millisecond
)

// ErrLockTimeout is logged when Acquire gives up.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker is the narrow interface the turn pipeline depends on.
type Locker interface {
	// Acquire reports whether the caller now owns the lock for sessionID.
	Acquire(ctx context.Context, sessionID string) bool

	// Release drops the lock for sessionID if, and only if, the caller owns it.
	Release(ctx context.Context, sessionID string)
}

// Options configures a Locker backend.
type Options struct {
	// Timeout bounds Acquire. Zero means DefaultTimeout.
	Timeout time.Duration

	// Stale is the age after which a held lock may be reclaimed.
	// Zero means DefaultStale.
	Stale time.Duration

	// PollInterval is the wait between attempts. Zero means DefaultPollInterval.
	PollInterval time.Duration

	// Owner identifies the caller. Empty means the process id.
	Owner string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Stale <= 0 {
		o.Stale = DefaultStale
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Owner == "" {
		o.Owner = strconv.Itoa(os.Getpid())
	}
	return o
}
