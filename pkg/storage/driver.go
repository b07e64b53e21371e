// Package storage defines persistence for the local memory API emulator.
package storage

import (
	"context"
)

// Driver defines the interface for persisting captures, patterns and turn
// logs in a storage backend.
type Driver interface {
	// PutCapture stores a captured exchange. ID and CreatedAt are assigned
	// by the caller.
	PutCapture(ctx context.Context, c *Capture) error

	// Captures returns captures for a session, oldest first. An empty
	// sessionID returns every capture.
	Captures(ctx context.Context, sessionID string) ([]*Capture, error)

	// PutPattern stores or replaces a pattern by ID.
	PutPattern(ctx context.Context, p *Pattern) error

	// GetPattern retrieves a pattern by ID.
	GetPattern(ctx context.Context, id string) (*Pattern, error)

	// Patterns returns every pattern, newest first.
	Patterns(ctx context.Context) ([]*Pattern, error)

	// PutReflexLog stores a turn summary.
	PutReflexLog(ctx context.Context, l *ReflexLog) error

	// ReflexLogs returns turn summaries for a session, oldest first. An empty
	// sessionID returns every log.
	ReflexLogs(ctx context.Context, sessionID string) ([]*ReflexLog, error)

	// Close closes the store and releases any resources.
	Close() error
}
