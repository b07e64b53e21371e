// Package cmdenv resolves the configuration, logger, credentials and project
// state every reflex command starts from.
package cmdenv

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/pkg/config"
	"github.com/papercomputeco/reflex/pkg/credentials"
	"github.com/papercomputeco/reflex/pkg/dotdir"
	"github.com/papercomputeco/reflex/pkg/logger"
	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/state"
)

// Persistent flags registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
)

// ConfigDir returns the --config-dir override, empty when unset.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString(FlagConfigDir)
	return dir
}

// LoadConfig resolves config.toml, REFLEX_ env vars and the named registry
// flags of cmd into a Config.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v), nil
}

// NewLogger builds the command logger. It writes pretty output to the
// command's stderr and, when log.file is set, JSON lines to that file. The
// returned func closes the file.
func NewLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func()) {
	debug, _ := cmd.Flags().GetBool(FlagDebug)

	stderr := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)

	if cfg == nil || cfg.Log.File == "" {
		return stderr, func() {}
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		stderr.Warn("could not open log file", "path", cfg.Log.File, "error", err)
		return stderr, func() {}
	}

	file := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(stderr, file), func() { _ = f.Close() }
}

// NewMemoryClient loads credentials and builds the memory API client. The
// credentials api_url only applies while api.url is left at its default.
func NewMemoryClient(configDir string, cfg *config.Config) (*memoryapi.Client, error) {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	creds, err := mgr.Load()
	if err != nil {
		return nil, err
	}

	baseURL := cfg.API.URL
	if creds.APIURL != "" && baseURL == config.DefaultAPIURL() {
		baseURL = creds.APIURL
	}

	return memoryapi.NewClient(memoryapi.ClientConfig{
		BaseURL:     baseURL,
		AccessToken: creds.AccessToken,
		UserID:      creds.UserID,
	}), nil
}

// ProjectStore resolves the project root from cwd and opens its state store.
func ProjectStore(cwd string) (*state.Store, string, error) {
	ddm := dotdir.NewManager()

	root, err := ddm.ProjectRoot(cwd)
	if err != nil {
		return nil, "", err
	}

	dir, err := ddm.StateDir(root)
	if err != nil {
		return nil, "", err
	}

	store, err := state.New(dir)
	if err != nil {
		return nil, "", err
	}
	return store, root, nil
}
