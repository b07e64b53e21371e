// Package sweep purges per-session state files by age.
package sweep

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/papercomputeco/reflex/pkg/state"
)

// DefaultMaxAge is the age after which state files are purged.
const DefaultMaxAge = 24 * time.Hour

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Removed int
	Failed  int
	Errors  []error
}

// Summary returns a human-readable one-liner.
func (r *Result) Summary() string {
	return fmt.Sprintf("swept %d state files: %d removed, %d failed", r.Scanned, r.Removed, r.Failed)
}

// Sweeper deletes state files older than a cutoff.
type Sweeper struct {
	store  *state.Store
	logger *slog.Logger
	now    func() time.Time
	remove func(path string) error
}

// New creates a Sweeper over store.
func New(store *state.Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		logger: logger,
		now:    time.Now,
		remove: store.RemovePath,
	}
}

// Sweep removes every file modified before now-maxAge. A non-positive maxAge
// means DefaultMaxAge. Per-file failures are recorded and skipped.
func (s *Sweeper) Sweep(maxAge time.Duration) *Result {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := s.now().Add(-maxAge).UnixNano()

	result := &Result{}

	files, err := s.store.List()
	if err != nil {
		s.logger.Warn("listing state files failed", "error", err)
		result.Errors = append(result.Errors, err)
		return result
	}

	for _, f := range files {
		result.Scanned++
		if f.ModTime >= cutoff {
			continue
		}

		if err := s.remove(f.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Another hook got there first.
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("removing %s: %w", f.Name, err))
			s.logger.Debug("sweep skipped file", "file", f.Name, "error", err)
			continue
		}

		result.Removed++
		s.logger.Debug("swept state file", "file", f.Name)
	}

	return result
}
