package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/papercomputeco/reflex/pkg/ack"
	"github.com/papercomputeco/reflex/pkg/capture"
	"github.com/papercomputeco/reflex/pkg/eventstream"
	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/transcript"
	"github.com/papercomputeco/reflex/pkg/utils"
)

const (
	// forgeTag marks patterns created from FORGE markers.
	forgeTag = "forged"

	maxForgeProblem  = 2000
	maxForgeSolution = 4000
)

// StopResult describes what the stop invocation did.
type StopResult struct {
	// Retrieved is the number of patterns loaded from the handoff.
	Retrieved int

	// Ack is the parsed acknowledgment outcome.
	Ack ack.Result

	// CaptureDispatched is true when the current exchange was sent.
	CaptureDispatched bool
}

// Stop runs invocation B of a turn:
//  1. load the handoff (missing or malformed means no patterns)
//  2. parse acknowledgment markers, falling back to the title heuristic
//  3. compute coverage
//  4. dispatch forge requests
//  5. dispatch the final capture of this exchange
//  6. clear the handoff, always
//  7. dispatch the turn summary
func (p *Pipeline) Stop(ctx context.Context, in HookInput) StopResult {
	var result StopResult
	sessionID := in.SessionID
	log := p.logger.With("hook", "stop", "session", sessionID)

	defer func() {
		if err := p.handoffs.Clear(sessionID); err != nil {
			log.Warn("clearing pattern handoff failed", "error", err)
		}
	}()

	h := p.handoffs.Load(sessionID)
	result.Retrieved = len(h.Patterns)

	query, response := p.currentExchange(in)

	result.Ack = ack.Parse(response, h.Patterns)
	if result.Ack.Legacy {
		log.Debug("no acknowledgment markers, used title heuristic", "applied", len(result.Ack.Applied))
	}
	if len(result.Ack.Rejected) > 0 {
		log.Debug("rejected short acknowledgment ids", "ids", result.Ack.Rejected)
	}

	log.Info("turn complete",
		"retrieved", result.Retrieved,
		"applied", len(result.Ack.Applied),
		"skipped", len(result.Ack.Skipped),
		"coverage", result.Ack.Coverage,
	)

	if p.api.Configured() {
		for _, title := range result.Ack.Forged {
			p.dispatchForge(sessionID, title, query, response)
		}

		if query != "" && response != "" {
			result.CaptureDispatched = p.captureCurrent(ctx, in, h.Patterns, result.Ack.Applied, query, response)
		}

		p.dispatchReflexLog(in, h.ModelUsed, result)
	} else {
		log.Debug("memory api not configured, skipping capture and analytics")
	}

	p.dispatchEvent(in, h.ModelUsed, h.Patterns, result.Ack)

	return result
}

// currentExchange returns the query and response of the turn that just
// ended. A response provided on stdin wins over the transcript.
func (p *Pipeline) currentExchange(in HookInput) (string, string) {
	response := strings.TrimSpace(in.Response)
	if in.TranscriptPath == "" {
		return "", response
	}

	t, err := transcript.ReadFile(in.TranscriptPath)
	if err != nil {
		p.logger.Warn("reading transcript failed", "hook", "stop", "path", in.TranscriptPath, "error", err)
		return "", response
	}

	last, ok := t.Last()
	if !ok {
		return "", response
	}
	if response == "" {
		response = last.Response
	}
	return last.Query, response
}

// captureCurrent sends this exchange with the retrieved and applied ids and
// records it in the ledger so the next prompt-submit does not send it again.
func (p *Pipeline) captureCurrent(ctx context.Context, in HookInput, retrieved []pattern.Pattern, applied []string, query, response string) bool {
	digest := capture.Hash(query, response)

	held := p.locker.Acquire(ctx, in.SessionID)
	if held {
		defer p.locker.Release(ctx, in.SessionID)
		if p.captures.WasCaptured(in.SessionID, digest) {
			return false
		}
	}

	if applied == nil {
		applied = []string{}
	}

	ok := p.dispatchCapture(memoryapi.CaptureRequest{
		UserQuery:         query,
		AssistantResponse: response,
		SessionID:         in.SessionID,
		Model:             in.Model,
		TaskID:            in.TaskID,
		PatternsRetrieved: pattern.IDs(retrieved),
		PatternsApplied:   applied,
		Metadata:          map[string]string{"source": "stop"},
	})

	if ok && held {
		if err := p.captures.MarkCaptured(in.SessionID, digest); err != nil {
			p.logger.Warn("recording capture failed", "hook", "stop", "session", in.SessionID, "error", err)
		}
	}
	return ok
}

func (p *Pipeline) dispatchForge(sessionID, title, query, response string) {
	req := memoryapi.ForgeRequest{
		Title:     title,
		Problem:   utils.Truncate(query, maxForgeProblem),
		Solution:  utils.Truncate(response, maxForgeSolution),
		Tags:      []string{forgeTag},
		SessionID: sessionID,
		Source:    "stop",
	}

	p.dispatch("forge", func(ctx context.Context) error {
		resp, err := p.api.ForgePattern(ctx, req)
		if err != nil {
			return err
		}
		p.logger.Info("pattern forged", "session", sessionID, "title", title, "pattern_id", resp.PatternID)
		return nil
	})
}

func (p *Pipeline) dispatchReflexLog(in HookInput, modelUsed string, result StopResult) {
	event := memoryapi.ReflexLogEvent{
		SessionID:         in.SessionID,
		Model:             firstNonEmpty(in.Model, modelUsed),
		TaskID:            in.TaskID,
		PatternsRetrieved: result.Retrieved,
		PatternsApplied:   len(result.Ack.Applied),
		PatternsSkipped:   len(result.Ack.Skipped),
		PatternsForged:    len(result.Ack.Forged),
		Coverage:          result.Ack.Coverage,
		LegacyFallback:    result.Ack.Legacy,
		Timestamp:         time.Now().UTC(),
	}

	p.dispatch("reflex-log", func(ctx context.Context) error {
		return p.api.LogReflex(ctx, event)
	})
}

func (p *Pipeline) dispatchEvent(in HookInput, modelUsed string, retrieved []pattern.Pattern, res ack.Result) {
	event := eventstream.NewTurnCompletedEvent(
		eventstream.EventSource{
			Project: p.config.Project,
			Model:   firstNonEmpty(in.Model, modelUsed),
			Hook:    "stop",
		},
		eventstream.TurnSession{
			SessionID: in.SessionID,
			TaskID:    in.TaskID,
		},
		eventstream.TurnPatterns{
			Retrieved:      nonNil(pattern.IDs(retrieved)),
			Applied:        nonNil(res.Applied),
			Skipped:        nonNil(res.Skipped),
			Rejected:       res.Rejected,
			Forged:         res.Forged,
			Coverage:       res.Coverage,
			LegacyFallback: res.Legacy,
		},
	)

	p.dispatch("turn-event", func(ctx context.Context) error {
		return p.events.PublishTurn(ctx, event)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
