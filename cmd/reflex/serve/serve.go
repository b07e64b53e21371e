// Package servecmder provides the serve command that runs the local memory
// API emulator.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/api"
	"github.com/papercomputeco/reflex/cmd/reflex/cmdenv"
	"github.com/papercomputeco/reflex/pkg/config"
	"github.com/papercomputeco/reflex/pkg/credentials"
	"github.com/papercomputeco/reflex/pkg/storage"
	"github.com/papercomputeco/reflex/pkg/storage/inmemory"
	"github.com/papercomputeco/reflex/pkg/storage/postgres"
	"github.com/papercomputeco/reflex/pkg/storage/sqlite"
)

const serveLongDesc string = `Run a local emulator of the memory API.

The emulator serves the same endpoints the hooks call, so a project can run
reflex without a hosted account:

  POST /memory/capture     POST /context/retrieve
  POST /patterns           POST /reflex/log

Retrieval is a plain keyword match over stored patterns. When an access token
is configured (credentials.json or REFLEX_ACCESS_TOKEN) callers must present
it as a bearer token.

Examples:
  reflex serve
  reflex serve --storage sqlite --sqlite reflex.sqlite
  reflex serve --storage postgres --postgres postgres://reflex@localhost/reflex`

const serveShortDesc string = "Run the local memory API emulator"

var serveFlags = []string{
	config.FlagServeListen,
	config.FlagServeStorage,
	config.FlagSQLitePath,
	config.FlagPostgresDSN,
	config.FlagLogFile,
}

type serveCommander struct {
	listen      string
	storage     string
	sqlitePath  string
	postgresDSN string
	logFile     string
	logger      *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServeListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagServeStorage, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLitePath, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, err := cmdenv.LoadConfig(cmd, serveFlags...)
	if err != nil {
		return err
	}

	var closeLog func()
	c.logger, closeLog = cmdenv.NewLogger(cmd, cfg)
	defer closeLog()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	driver, err := NewStorageDriver(ctx, cfg.Serve, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	token, err := accessToken(cmdenv.ConfigDir(cmd))
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{
		ListenAddr:  cfg.Serve.Listen,
		AccessToken: token,
	}, driver, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// NewStorageDriver opens the storage backend named by cfg.Storage.
func NewStorageDriver(ctx context.Context, cfg config.ServeConfig, logger *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite storage requires --%s", config.Flags[config.FlagSQLitePath].Name)
		}
		driver, err := sqlite.NewSQLiteDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", "path", cfg.SQLitePath)
		return driver, nil

	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires --%s", config.Flags[config.FlagPostgresDSN].Name)
		}
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	case "", config.StorageMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage)
	}
}

func accessToken(configDir string) (string, error) {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return "", err
	}
	creds, err := mgr.Load()
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}
