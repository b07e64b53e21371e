package pipeline

import (
	"context"
	"strings"

	"github.com/papercomputeco/reflex/pkg/capture"
	"github.com/papercomputeco/reflex/pkg/lock"
	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/transcript"
)

// PromptSubmitResult describes what the prompt-submit invocation did.
type PromptSubmitResult struct {
	// LockHeld is true when the session lock was acquired.
	LockHeld bool

	// CaptureDispatched is true when the previous exchange was sent.
	CaptureDispatched bool

	// Patterns are the retrieved patterns saved to the handoff.
	Patterns []pattern.Pattern

	// Context is the block printed for the assistant. Empty when nothing
	// was retrieved.
	Context string
}

// PromptSubmit runs invocation A of a turn:
//  1. acquire the session lock (best effort)
//  2. capture the previous exchange if it was not captured yet
//  3. release the lock
//  4. retrieve patterns for the new prompt
//  5. save the handoff for the stop hook
func (p *Pipeline) PromptSubmit(ctx context.Context, in HookInput) PromptSubmitResult {
	var result PromptSubmitResult
	sessionID := in.SessionID
	log := p.logger.With("hook", "prompt-submit", "session", sessionID)

	result.LockHeld = p.locker.Acquire(ctx, sessionID)
	if result.LockHeld {
		result.CaptureDispatched = p.capturePrevious(ctx, in)
		p.locker.Release(ctx, sessionID)
	} else {
		log.Warn("skipping previous turn capture", "error", lock.ErrLockTimeout)
	}

	patterns, formatted := p.retrieve(ctx, in)
	result.Patterns = patterns

	if err := p.handoffs.Save(sessionID, patterns, in.Model, in.TaskID); err != nil {
		log.Warn("saving pattern handoff failed", "error", err)
	}

	result.Context = RenderContext(patterns, formatted)

	log.Info("prompt submitted",
		"patterns", len(patterns),
		"captured_previous", result.CaptureDispatched,
	)
	return result
}

// capturePrevious sends the exchange preceding in.Prompt unless the ledger
// already has it. It must run under the session lock.
func (p *Pipeline) capturePrevious(_ context.Context, in HookInput) bool {
	log := p.logger.With("hook", "prompt-submit", "session", in.SessionID)

	if !p.api.Configured() {
		log.Debug("memory api not configured, skipping capture")
		return false
	}
	if in.TranscriptPath == "" {
		log.Debug("no transcript path, skipping capture")
		return false
	}

	t, err := transcript.ReadFile(in.TranscriptPath)
	if err != nil {
		log.Warn("reading transcript failed", "path", in.TranscriptPath, "error", err)
		return false
	}
	if t.Skipped > 0 {
		log.Debug("skipped malformed transcript lines", "count", t.Skipped)
	}

	ex, ok := t.Previous(in.Prompt)
	if !ok {
		log.Debug("no previous exchange to capture")
		return false
	}

	digest := capture.Hash(ex.Query, ex.Response)
	if p.captures.WasCaptured(in.SessionID, digest) {
		log.Debug("previous exchange already captured", "digest", digest)
		return false
	}

	model := in.Model
	if model == "" {
		model = t.Model
	}

	req := memoryapi.CaptureRequest{
		UserQuery:         ex.Query,
		AssistantResponse: ex.Response,
		SessionID:         in.SessionID,
		Model:             model,
		TaskID:            in.TaskID,
		Metadata:          map[string]string{"source": "prompt-submit"},
	}
	if !p.dispatchCapture(req) {
		return false
	}

	if err := p.captures.MarkCaptured(in.SessionID, digest); err != nil {
		log.Warn("recording capture failed", "error", err)
	}
	return true
}

// retrieve fetches patterns for the prompt under the retrieval deadline.
// Any failure yields no patterns.
func (p *Pipeline) retrieve(ctx context.Context, in HookInput) ([]pattern.Pattern, string) {
	log := p.logger.With("hook", "prompt-submit", "session", in.SessionID)

	if !p.api.Configured() {
		log.Debug("memory api not configured, skipping retrieval")
		return []pattern.Pattern{}, ""
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return []pattern.Pattern{}, ""
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.RetrieveTimeout)
	defer cancel()

	resp, err := p.api.Retrieve(ctx, memoryapi.RetrieveRequest{
		Query:     in.Prompt,
		SessionID: in.SessionID,
		Layers:    p.config.Layers,
	})
	if err != nil {
		log.Warn("pattern retrieval failed", "error", err)
		return []pattern.Pattern{}, ""
	}
	if resp.Patterns == nil {
		resp.Patterns = []pattern.Pattern{}
	}
	return resp.Patterns, resp.Formatted
}

func (p *Pipeline) dispatchCapture(req memoryapi.CaptureRequest) bool {
	return p.dispatch("capture", func(ctx context.Context) error {
		resp, err := p.api.Capture(ctx, req)
		if err != nil {
			return err
		}
		p.logger.Debug("exchange captured", "session", req.SessionID, "capture_id", resp.CaptureID)
		return nil
	})
}
