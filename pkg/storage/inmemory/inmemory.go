// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/reflex/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding every collection below
	mu sync.RWMutex

	captures   []*storage.Capture
	patterns   map[string]*storage.Pattern
	reflexLogs []*storage.ReflexLog
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		patterns: make(map[string]*storage.Pattern),
	}
}

// PutCapture stores a captured exchange.
func (s *Driver) PutCapture(_ context.Context, c *storage.Capture) error {
	if c == nil {
		return errors.New("cannot store nil capture")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.captures = append(s.captures, &cp)
	return nil
}

// Captures returns captures for a session in insertion order.
func (s *Driver) Captures(_ context.Context, sessionID string) ([]*storage.Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Capture
	for _, c := range s.captures {
		if sessionID == "" || c.SessionID == sessionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// PutPattern stores or replaces a pattern.
func (s *Driver) PutPattern(_ context.Context, p *storage.Pattern) error {
	if p == nil {
		return errors.New("cannot store nil pattern")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *Driver) GetPattern(_ context.Context, id string) (*storage.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "pattern", ID: id}
	}

	cp := *p
	return &cp, nil
}

// Patterns returns every pattern, newest first.
func (s *Driver) Patterns(_ context.Context) ([]*storage.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		cp := *p
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PutReflexLog stores a turn summary.
func (s *Driver) PutReflexLog(_ context.Context, l *storage.ReflexLog) error {
	if l == nil {
		return errors.New("cannot store nil reflex log")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.reflexLogs = append(s.reflexLogs, &cp)
	return nil
}

// ReflexLogs returns turn summaries for a session in insertion order.
func (s *Driver) ReflexLogs(_ context.Context, sessionID string) ([]*storage.ReflexLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.ReflexLog
	for _, l := range s.reflexLogs {
		if sessionID == "" || l.SessionID == sessionID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}
