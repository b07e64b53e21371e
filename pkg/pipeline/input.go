package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxInputBytes caps how much hook input is read from stdin.
const MaxInputBytes = 1 << 20

// Hook event names sent by the host.
const (
	EventUserPromptSubmit = "UserPromptSubmit"
	EventStop             = "Stop"
)

// HookInput is the JSON object the host writes to a hook's stdin.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	Model          string `json:"model"`
	HookEventName  string `json:"hook_event_name"`

	// Prompt is set for prompt-submit.
	Prompt string `json:"prompt"`

	// Response is set for stop when the host provides it directly.
	Response string `json:"response"`

	TaskID string `json:"task_id,omitempty"`
}

// ReadInput decodes hook input from r, reading at most MaxInputBytes.
// Empty input yields the zero HookInput.
func ReadInput(r io.Reader) (HookInput, error) {
	var in HookInput

	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return in, fmt.Errorf("reading hook input: %w", err)
	}
	if len(data) > MaxInputBytes {
		return in, errors.New("hook input exceeds 1 MiB")
	}
	if strings.TrimSpace(string(data)) == "" {
		return in, nil
	}

	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("decoding hook input: %w", err)
	}
	return in, nil
}
