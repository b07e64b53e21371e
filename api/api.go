package api

import (
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/storage"
)

const defaultRetrieveLimit = 5

// Server emulates the memory API on top of a storage.Driver.
type Server struct {
	config Config
	storer storage.Driver
	logger *slog.Logger
	app    *fiber.App
	now    func() time.Time
}

// NewServer creates a new API server.
// The storer is injected so the caller owns its lifecycle.
func NewServer(config Config, storer storage.Driver, logger *slog.Logger) *Server {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaultRetrieveLimit
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		storer: storer,
		logger: logger,
		app:    app,
		now:    func() time.Time { return time.Now().UTC() },
	}

	app.Get("/ping", s.handlePing)

	authed := app.Group("", s.requireBearer)
	authed.Post(memoryapi.CapturePath, s.handleCapture)
	authed.Get("/memory/captures", s.handleListCaptures)
	authed.Post(memoryapi.RetrievePath, s.handleRetrieve)
	authed.Post(memoryapi.PatternsPath, s.handleForgePattern)
	authed.Get(memoryapi.PatternsPath, s.handleListPatterns)
	authed.Get(memoryapi.PatternsPath+"/:id", s.handleGetPattern)
	authed.Post(memoryapi.ReflexLogPath, s.handleReflexLog)
	authed.Get(memoryapi.ReflexLogPath, s.handleListReflexLogs)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting memory API emulator",
		"listen", s.config.ListenAddr,
		"auth", s.config.AccessToken != "",
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting memory API emulator",
		"listen", ln.Addr().String(),
		"auth", s.config.AccessToken != "",
	)
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requireBearer rejects requests without the configured bearer token.
func (s *Server) requireBearer(c *fiber.Ctx) error {
	if s.config.AccessToken == "" {
		return c.Next()
	}

	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || token != s.config.AccessToken {
		return c.Status(fiber.StatusUnauthorized).JSON(memoryapi.ErrorResponse{
			Error: "invalid or missing bearer token",
		})
	}
	return c.Next()
}
