package lock

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/reflex/pkg/state"
)

// FileLocker implements Locker with a lock file in the state directory. The
// file holds the owner identifier; its mtime marks acquisition time.
type FileLocker struct {
	store  *state.Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewFileLocker creates a FileLocker over store.
func NewFileLocker(store *state.Store, opts Options, logger *slog.Logger) *FileLocker {
	return &FileLocker{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Owner returns the identifier written into lock files.
func (l *FileLocker) Owner() string {
	return l.opts.Owner
}

// Acquire polls for the lock file's absence until the timeout elapses. A lock
// older than the stale threshold is removed and acquisition proceeds.
func (l *FileLocker) Acquire(ctx context.Context, sessionID string) bool {
	deadline := l.now().Add(l.opts.Timeout)

	// The watcher only shortens waits; polling still works without it.
	watcher := l.watch()
	if watcher != nil {
		defer watcher.Close()
	}

	for {
		err := l.store.CreateExclusive(state.KindLock, sessionID, []byte(l.opts.Owner))
		if err == nil {
			l.logger.Debug("lock acquired", "session", sessionID, "owner", l.opts.Owner)
			return true
		}

		if !errors.Is(err, os.ErrExist) {
			l.logger.Warn("lock create failed", "session", sessionID, "error", err)
			return false
		}

		if l.reclaimStale(sessionID) {
			continue
		}

		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			l.logger.Debug("lock not acquired",
				"session", sessionID,
				"timeout", l.opts.Timeout,
				"error", ErrLockTimeout,
			)
			return false
		}

		if !l.wait(ctx, watcher, min(remaining, l.opts.PollInterval)) {
			l.logger.Debug("lock wait cancelled", "session", sessionID, "error", ctx.Err())
			return false
		}
	}
}

// Release removes the lock file only when it holds this locker's owner id.
func (l *FileLocker) Release(_ context.Context, sessionID string) {
	data, err := l.store.Read(state.KindLock, sessionID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("reading lock failed", "session", sessionID, "error", err)
		}
		return
	}

	holder := strings.TrimSpace(string(data))
	if holder != l.opts.Owner {
		l.logger.Debug("not releasing foreign lock", "session", sessionID, "holder", holder)
		return
	}

	if err := l.store.Remove(state.KindLock, sessionID); err != nil {
		l.logger.Warn("removing lock failed", "session", sessionID, "error", err)
		return
	}

	l.logger.Debug("lock released", "session", sessionID)
}

// reclaimStale removes the lock when it is older than the stale threshold.
// It reports whether the caller should retry immediately.
//
// The lock is first renamed to a tombstone, which claims whatever file sits
// at the lock path at that instant. If that file is not the stale one that
// was observed, another waiter already reclaimed it and took a fresh lock, so
// the file is put back untouched.
func (l *FileLocker) reclaimStale(sessionID string) bool {
	observed, err := l.store.Stat(state.KindLock, sessionID)
	if err != nil {
		// Released between the create attempt and the stat.
		return errors.Is(err, os.ErrNotExist)
	}

	age := l.now().Sub(observed.ModTime())
	if age <= l.opts.Stale {
		return false
	}

	tomb, err := l.store.Tombstone(state.KindLock, sessionID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true
		}
		l.logger.Warn("reclaiming stale lock failed", "session", sessionID, "error", err)
		return false
	}

	claimed, err := os.Stat(tomb)
	if err != nil || !os.SameFile(observed, claimed) || !claimed.ModTime().Equal(observed.ModTime()) {
		if err := l.store.Restore(state.KindLock, sessionID, tomb); err != nil {
			l.logger.Warn("restoring lock failed", "session", sessionID, "error", err)
		}
		l.logger.Debug("stale lock already reclaimed", "session", sessionID)
		return false
	}

	if err := l.store.RemovePath(tomb); err != nil {
		l.logger.Warn("removing stale lock failed", "session", sessionID, "error", err)
	}

	l.logger.Info("reclaimed stale lock", "session", sessionID, "age", age.Round(time.Millisecond))
	return true
}

// watch subscribes to state directory events. Returns nil when fsnotify is
// unavailable.
func (l *FileLocker) watch() *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.logger.Debug("fsnotify unavailable, polling only", "error", err)
		return nil
	}

	if err := watcher.Add(l.store.Dir()); err != nil {
		l.logger.Debug("fsnotify watch failed, polling only", "error", err)
		_ = watcher.Close()
		return nil
	}

	return watcher
}

// wait sleeps for d, returning early on a remove/rename event in the state
// directory. Returns false when ctx is done.
func (l *FileLocker) wait(ctx context.Context, watcher *fsnotify.Watcher, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return true
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}
