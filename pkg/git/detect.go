// Package git provides utilities for detecting git repository information.
package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// detectTimeout bounds the git subprocess so a hook never stalls on it.
const detectTimeout = 2 * time.Second

// RepoName returns the name of the git repository containing dir.
// It runs "git rev-parse --show-toplevel" in dir and returns the base directory
// name. Outside a repository, or without git installed, it falls back to the
// base name of dir.
func RepoName(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir

	out, err := cmd.Output()
	if err == nil {
		top := strings.TrimSpace(string(out))
		if top != "" {
			return filepath.Base(top)
		}
	}

	if dir == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(dir))
}
