package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/storage"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCapture handles POST /memory/capture.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	var req memoryapi.CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SessionID == "" {
		return badRequest(c, "session_id is required")
	}
	if req.UserQuery == "" || req.AssistantResponse == "" {
		return badRequest(c, "user_query and assistant_response are required")
	}

	capture := &storage.Capture{
		ID:                uuid.NewString(),
		SessionID:         req.SessionID,
		UserID:            req.UserID,
		UserQuery:         req.UserQuery,
		AssistantResponse: req.AssistantResponse,
		Model:             req.Model,
		TaskID:            req.TaskID,
		PatternsRetrieved: req.PatternsRetrieved,
		PatternsApplied:   req.PatternsApplied,
		CreatedAt:         s.now(),
	}
	if err := s.storer.PutCapture(c.Context(), capture); err != nil {
		s.logger.Error("failed to store capture", "session_id", req.SessionID, "error", err)
		return internalError(c, "failed to store capture")
	}

	s.logger.Debug("stored capture",
		"capture_id", capture.ID,
		"session_id", capture.SessionID,
		"patterns_applied", len(capture.PatternsApplied),
	)

	return c.Status(fiber.StatusCreated).JSON(memoryapi.CaptureResponse{
		CaptureID: capture.ID,
		Status:    "stored",
	})
}

// handleListCaptures handles GET /memory/captures.
// Query parameters:
//   - session_id (optional): restrict to one session
func (s *Server) handleListCaptures(c *fiber.Ctx) error {
	captures, err := s.storer.Captures(c.Context(), c.Query("session_id"))
	if err != nil {
		return internalError(c, "failed to list captures")
	}

	out := make([]memoryapi.CaptureRequest, 0, len(captures))
	for _, cp := range captures {
		out = append(out, memoryapi.CaptureRequest{
			UserQuery:         cp.UserQuery,
			AssistantResponse: cp.AssistantResponse,
			SessionID:         cp.SessionID,
			UserID:            cp.UserID,
			Model:             cp.Model,
			TaskID:            cp.TaskID,
			PatternsRetrieved: cp.PatternsRetrieved,
			PatternsApplied:   cp.PatternsApplied,
			Metadata:          map[string]string{"capture_id": cp.ID},
		})
	}
	return c.JSON(out)
}

// handleRetrieve handles POST /context/retrieve with a keyword match over
// stored patterns. Layers are accepted and ignored.
func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	var req memoryapi.RetrieveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	all, err := s.storer.Patterns(c.Context())
	if err != nil {
		return internalError(c, "failed to load patterns")
	}

	ranked := storage.RankPatterns(all, req.Query, limit)
	resp := memoryapi.RetrieveResponse{Patterns: make([]pattern.Pattern, 0, len(ranked))}
	for _, p := range ranked {
		resp.Patterns = append(resp.Patterns, p.ToPattern())
	}

	s.logger.Debug("retrieved patterns",
		"session_id", req.SessionID,
		"candidates", len(all),
		"returned", len(resp.Patterns),
	)

	return c.JSON(resp)
}

// handleForgePattern handles POST /patterns.
func (s *Server) handleForgePattern(c *fiber.Ctx) error {
	var req memoryapi.ForgeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Title == "" {
		return badRequest(c, "title is required")
	}

	p := &storage.Pattern{
		ID:        "pat-" + uuid.NewString(),
		Title:     req.Title,
		Problem:   req.Problem,
		Solution:  req.Solution,
		Tags:      req.Tags,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Source:    req.Source,
		CreatedAt: s.now(),
	}
	if err := s.storer.PutPattern(c.Context(), p); err != nil {
		s.logger.Error("failed to store pattern", "title", req.Title, "error", err)
		return internalError(c, "failed to store pattern")
	}

	s.logger.Info("forged pattern", "pattern_id", p.ID, "title", p.Title, "source", p.Source)

	return c.Status(fiber.StatusCreated).JSON(memoryapi.ForgeResponse{PatternID: p.ID})
}

// handleListPatterns handles GET /patterns.
func (s *Server) handleListPatterns(c *fiber.Ctx) error {
	all, err := s.storer.Patterns(c.Context())
	if err != nil {
		return internalError(c, "failed to list patterns")
	}

	out := make([]pattern.Pattern, 0, len(all))
	for _, p := range all {
		out = append(out, p.ToPattern())
	}
	return c.JSON(out)
}

// handleGetPattern handles GET /patterns/:id.
func (s *Server) handleGetPattern(c *fiber.Ctx) error {
	p, err := s.storer.GetPattern(c.Context(), c.Params("id"))
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(memoryapi.ErrorResponse{Error: "pattern not found"})
		}
		return internalError(c, "failed to load pattern")
	}
	return c.JSON(p.ToPattern())
}

// handleReflexLog handles POST /reflex/log.
func (s *Server) handleReflexLog(c *fiber.Ctx) error {
	var req memoryapi.ReflexLogEvent
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SessionID == "" {
		return badRequest(c, "session_id is required")
	}

	created := req.Timestamp
	if created.IsZero() {
		created = s.now()
	}

	entry := &storage.ReflexLog{
		ID:                uuid.NewString(),
		SessionID:         req.SessionID,
		UserID:            req.UserID,
		Model:             req.Model,
		TaskID:            req.TaskID,
		PatternsRetrieved: req.PatternsRetrieved,
		PatternsApplied:   req.PatternsApplied,
		PatternsSkipped:   req.PatternsSkipped,
		PatternsForged:    req.PatternsForged,
		Coverage:          req.Coverage,
		LegacyFallback:    req.LegacyFallback,
		CreatedAt:         created.UTC(),
	}
	if err := s.storer.PutReflexLog(c.Context(), entry); err != nil {
		s.logger.Error("failed to store reflex log", "session_id", req.SessionID, "error", err)
		return internalError(c, "failed to store reflex log")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// handleListReflexLogs handles GET /reflex/log.
// Query parameters:
//   - session_id (optional): restrict to one session
func (s *Server) handleListReflexLogs(c *fiber.Ctx) error {
	logs, err := s.storer.ReflexLogs(c.Context(), c.Query("session_id"))
	if err != nil {
		return internalError(c, "failed to list reflex logs")
	}

	out := make([]memoryapi.ReflexLogEvent, 0, len(logs))
	for _, l := range logs {
		out = append(out, memoryapi.ReflexLogEvent{
			SessionID:         l.SessionID,
			UserID:            l.UserID,
			Model:             l.Model,
			TaskID:            l.TaskID,
			PatternsRetrieved: l.PatternsRetrieved,
			PatternsApplied:   l.PatternsApplied,
			PatternsSkipped:   l.PatternsSkipped,
			PatternsForged:    l.PatternsForged,
			Coverage:          l.Coverage,
			LegacyFallback:    l.LegacyFallback,
			Timestamp:         l.CreatedAt,
		})
	}
	return c.JSON(out)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(memoryapi.ErrorResponse{Error: msg})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(memoryapi.ErrorResponse{Error: msg})
}
