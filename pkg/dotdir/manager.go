// Package dotdir manages the .reflex/ and <project>/.claude/state directories.
//
// The .reflex/ directory holds user-level configuration (config.toml,
// credentials.json). The project state directory holds the per-session files
// shared between hook invocations of the same turn.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// dirName is the name of the reflex configuration directory.
	dirName = ".reflex"

	// claudeDir and stateDir make up the per-project state location.
	claudeDir = ".claude"
	stateDir  = "state"

	// ProjectDirEnv is set by the host to the project root for hook processes.
	ProjectDirEnv = "CLAUDE_PROJECT_DIR"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .reflex/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.reflex/ dir
//  3. Home ~/.reflex/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reflex directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// ProjectRoot resolves the project root a hook runs against.
//  1. Provided cwd (from the hook payload)
//  2. $CLAUDE_PROJECT_DIR
//  3. The process working directory
func (m *Manager) ProjectRoot(cwd string) (string, error) {
	if root := strings.TrimSpace(cwd); root != "" {
		return filepath.Abs(root)
	}

	if root := strings.TrimSpace(os.Getenv(ProjectDirEnv)); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return wd, nil
}

// StateDir returns <root>/.claude/state, creating it if needed.
func (m *Manager) StateDir(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("empty project root")
	}

	dir := filepath.Join(root, claudeDir, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// localDirExists checks whether a .reflex/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
