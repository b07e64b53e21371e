// Package state owns every per-session file under a project's state
// directory. Other packages reach the files only through a *Store.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Kind identifies one of the per-session files.
type Kind int

const (
	// KindPatterns is the pattern handoff snapshot.
	KindPatterns Kind = iota
	// KindCaptures is the capture dedup log.
	KindCaptures
	// KindLock is the advisory lock file.
	KindLock
)

const (
	maxSessionLen  = 128
	sessionHashLen = 8
)

// fileName returns the file name for kind and an already sanitized session id.
func (k Kind) fileName(session string) string {
	switch k {
	case KindPatterns:
		return "patterns-" + session + ".json"
	case KindCaptures:
		return "captures-" + session + ".log"
	case KindLock:
		return "lock-" + session + ".lock"
	default:
		return fmt.Sprintf("unknown-%d-%s", int(k), session)
	}
}

func (k Kind) String() string {
	switch k {
	case KindPatterns:
		return "patterns"
	case KindCaptures:
		return "captures"
	case KindLock:
		return "lock"
	default:
		return "unknown"
	}
}

// Store provides raw file primitives scoped by session id.
type Store struct {
	dir string
}

// FileInfo describes one file in the state directory.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime int64 // unix nanoseconds
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("empty state directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of the kind file for sessionID.
func (s *Store) Path(kind Kind, sessionID string) string {
	return filepath.Join(s.dir, kind.fileName(SanitizeSession(sessionID)))
}

// Read returns the file contents. A missing file yields an error matching
// os.ErrNotExist.
func (s *Store) Read(kind Kind, sessionID string) ([]byte, error) {
	return os.ReadFile(s.Path(kind, sessionID))
}

// Write replaces the file atomically via a temp file and rename.
func (s *Store) Write(kind Kind, sessionID string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+kind.String()+"-*")
	if err != nil {
		return fmt.Errorf("creating temp %s file: %w", kind, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing temp %s file: %w", kind, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing temp %s file: %w", kind, err)
	}

	if err := os.Rename(tmp.Name(), s.Path(kind, sessionID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persisting %s file: %w", kind, err)
	}

	return nil
}

// Append appends data to the file, creating it if needed.
func (s *Store) Append(kind Kind, sessionID string, data []byte) error {
	f, err := os.OpenFile(s.Path(kind, sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // state files are not secrets
	if err != nil {
		return fmt.Errorf("opening %s file: %w", kind, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending %s file: %w", kind, err)
	}

	return f.Close()
}

// CreateExclusive creates the file with data only if it does not exist yet.
// An existing file yields an error matching os.ErrExist.
func (s *Store) CreateExclusive(kind Kind, sessionID string, data []byte) error {
	f, err := os.OpenFile(s.Path(kind, sessionID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("writing %s file: %w", kind, err)
	}

	return f.Close()
}

// Remove deletes the file. A missing file is not an error.
func (s *Store) Remove(kind Kind, sessionID string) error {
	if err := os.Remove(s.Path(kind, sessionID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing %s file: %w", kind, err)
	}
	return nil
}

// Tombstone atomically moves the kind file of sessionID aside under a unique
// name and returns the new path. A missing file yields an error matching
// os.ErrNotExist.
func (s *Store) Tombstone(kind Kind, sessionID string) (string, error) {
	tomb := fmt.Sprintf("%s.%d.%d.stale", s.Path(kind, sessionID), os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(s.Path(kind, sessionID), tomb); err != nil {
		return "", err
	}
	return tomb, nil
}

// Restore puts a tombstoned file back in place. It fails with os.ErrExist
// when another file has been created there meanwhile. The tombstone is
// removed either way.
func (s *Store) Restore(kind Kind, sessionID, tomb string) error {
	defer func() { _ = s.RemovePath(tomb) }()

	if err := os.Link(tomb, s.Path(kind, sessionID)); err != nil {
		return fmt.Errorf("restoring %s file: %w", kind, err)
	}
	return nil
}

// Stat returns file info for the kind file of sessionID.
func (s *Store) Stat(kind Kind, sessionID string) (fs.FileInfo, error) {
	return os.Stat(s.Path(kind, sessionID))
}

// List returns every regular file in the state directory.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing state directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(s.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		})
	}

	return files, nil
}

// RemovePath deletes a file previously returned by List. It refuses paths
// outside the state directory.
func (s *Store) RemovePath(path string) error {
	if filepath.Dir(path) != filepath.Clean(s.dir) {
		return fmt.Errorf("refusing to remove %s outside state directory", path)
	}
	return os.Remove(path)
}

// SanitizeSession maps a session id to a safe file name component. Bytes
// outside [A-Za-z0-9_-] become '_'. When that rewrites or truncates the id, a
// short digest of the raw id is appended so distinct ids never share files.
func SanitizeSession(raw string) string {
	if raw == "" {
		return "session"
	}

	b := []byte(raw)
	changed := false
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-' || c == '_':
		default:
			b[i] = '_'
			changed = true
		}
	}

	if !changed && len(b) <= maxSessionLen {
		return string(b)
	}

	sum := sha256.Sum256([]byte(raw))
	suffix := "-" + hex.EncodeToString(sum[:])[:sessionHashLen]
	if len(b) > maxSessionLen-len(suffix) {
		b = b[:maxSessionLen-len(suffix)]
	}
	return string(b) + suffix
}
