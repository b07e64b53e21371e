// Package capture keeps a per-session ledger of captured turns so the same
// exchange is sent to the memory API at most once per ledger window.
package capture

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/papercomputeco/reflex/pkg/state"
)

// MaxEntries bounds the ledger. Oldest entries are evicted first.
const MaxEntries = 100

// Hash returns the hex SHA-256 digest of userQuery followed by
// assistantResponse.
func Hash(userQuery, assistantResponse string) string {
	sum := sha256.Sum256([]byte(userQuery + assistantResponse))
	return hex.EncodeToString(sum[:])
}

// Log is the capture dedup ledger over a state.Store.
type Log struct {
	store  *state.Store
	logger *slog.Logger
}

// NewLog creates a Log.
func NewLog(store *state.Store, logger *slog.Logger) *Log {
	return &Log{store: store, logger: logger}
}

// WasCaptured reports whether digest is recorded for sessionID. A missing or
// unreadable ledger counts as not captured.
func (l *Log) WasCaptured(sessionID, digest string) bool {
	lines, err := l.lines(sessionID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("reading capture log failed", "session", sessionID, "error", err)
		}
		return false
	}

	for _, line := range lines {
		if line == digest {
			return true
		}
	}
	return false
}

// MarkCaptured appends digest and trims the ledger to the last MaxEntries
// lines. Errors during the trim are logged and ignored.
func (l *Log) MarkCaptured(sessionID, digest string) error {
	if err := l.store.Append(state.KindCaptures, sessionID, []byte(digest+"\n")); err != nil {
		return fmt.Errorf("recording capture: %w", err)
	}

	if err := l.trim(sessionID); err != nil {
		l.logger.Debug("trimming capture log failed", "session", sessionID, "error", err)
	}
	return nil
}

// Entries returns the recorded digests, oldest first.
func (l *Log) Entries(sessionID string) ([]string, error) {
	lines, err := l.lines(sessionID)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return lines, err
}

func (l *Log) trim(sessionID string) error {
	lines, err := l.lines(sessionID)
	if err != nil {
		return err
	}
	if len(lines) <= MaxEntries {
		return nil
	}

	kept := lines[len(lines)-MaxEntries:]
	return l.store.Write(state.KindCaptures, sessionID, []byte(strings.Join(kept, "\n")+"\n"))
}

func (l *Log) lines(sessionID string) ([]string, error) {
	data, err := l.store.Read(state.KindCaptures, sessionID)
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
