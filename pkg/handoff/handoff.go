// Package handoff transfers retrieved patterns from the prompt-submit hook to
// the stop hook of the same turn.
//
// The snapshot is a single JSON file per session. It has one writer (prompt
// submit) and one reader (stop) and is not lock guarded.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/state"
)

// Handoff is the persisted snapshot. The zero value means no snapshot.
type Handoff struct {
	Patterns  []pattern.Pattern `json:"patterns"`
	ModelUsed string            `json:"model_used"`
	TaskID    string            `json:"task_id,omitempty"`
	SavedAt   time.Time         `json:"saved_at"`
}

// Empty reports whether no snapshot was loaded.
func (h Handoff) Empty() bool {
	return h.SavedAt.IsZero() && len(h.Patterns) == 0 && h.ModelUsed == ""
}

// Store reads and writes handoff snapshots.
type Store struct {
	store  *state.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a handoff Store.
func NewStore(store *state.Store, logger *slog.Logger) *Store {
	return &Store{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Save writes the snapshot for sessionID, replacing any prior one.
func (s *Store) Save(sessionID string, patterns []pattern.Pattern, modelUsed, taskID string) error {
	if patterns == nil {
		patterns = []pattern.Pattern{}
	}

	data, err := json.MarshalIndent(Handoff{
		Patterns:  patterns,
		ModelUsed: modelUsed,
		TaskID:    taskID,
		SavedAt:   s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling handoff: %w", err)
	}

	if err := s.store.Write(state.KindPatterns, sessionID, data); err != nil {
		return fmt.Errorf("writing handoff: %w", err)
	}
	return nil
}

// Load returns the snapshot for sessionID. A missing or unparseable file
// yields the zero Handoff.
func (s *Store) Load(sessionID string) Handoff {
	data, err := s.store.Read(state.KindPatterns, sessionID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading handoff failed", "session", sessionID, "error", err)
		}
		return Handoff{}
	}

	var h Handoff
	if err := json.Unmarshal(data, &h); err != nil {
		s.logger.Warn("discarding malformed handoff", "session", sessionID, "error", err)
		return Handoff{}
	}
	return h
}

// Clear deletes the snapshot. Clearing a missing snapshot is not an error.
func (s *Store) Clear(sessionID string) error {
	return s.store.Remove(state.KindPatterns, sessionID)
}
