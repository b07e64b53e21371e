package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/reflex/pkg/dotdir"
)

const (
	credentialsFile = "credentials.json"

	// AccessTokenEnv and UserIDEnv override the stored values.
	AccessTokenEnv = "REFLEX_ACCESS_TOKEN"
	UserIDEnv      = "REFLEX_USER_ID"
)

// Manager manages reading and writing credentials.json in the .reflex/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .reflex/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.json and applies environment overrides.
// Returns empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	creds := &Credentials{}

	data, err := os.ReadFile(m.targetPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := json.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(AccessTokenEnv)); v != "" {
		creds.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv(UserIDEnv)); v != "" {
		creds.UserID = v
	}

	return creds, nil
}

// Save writes credentials to credentials.json with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}
