package memoryapi

import (
	"time"

	"github.com/papercomputeco/reflex/pkg/pattern"
)

// Endpoint paths on the memory API.
const (
	CapturePath   = "/memory/capture"
	RetrievePath  = "/context/retrieve"
	PatternsPath  = "/patterns"
	ReflexLogPath = "/reflex/log"
)

// CaptureRequest records one user/assistant exchange.
type CaptureRequest struct {
	UserQuery         string            `json:"user_query"`
	AssistantResponse string            `json:"assistant_response"`
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id,omitempty"`
	Model             string            `json:"model,omitempty"`
	TaskID            string            `json:"task_id,omitempty"`
	PatternsRetrieved []string          `json:"patterns_retrieved"`
	PatternsApplied   []string          `json:"patterns_applied"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CaptureResponse is returned by POST /memory/capture.
type CaptureResponse struct {
	CaptureID string `json:"capture_id"`
	Status    string `json:"status,omitempty"`
}

// RetrieveRequest asks for patterns relevant to a query.
type RetrieveRequest struct {
	Query     string   `json:"query"`
	UserID    string   `json:"user_id,omitempty"`
	SessionID string   `json:"session_id"`
	Layers    []string `json:"layers,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// RetrieveResponse carries retrieved patterns and optional display text.
type RetrieveResponse struct {
	Patterns  []pattern.Pattern `json:"patterns"`
	Formatted string            `json:"formatted,omitempty"`
}

// ForgeRequest persists a new pattern named by the assistant.
type ForgeRequest struct {
	Title     string   `json:"title"`
	Problem   string   `json:"problem"`
	Solution  string   `json:"solution"`
	Tags      []string `json:"tags,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// ForgeResponse is returned by POST /patterns.
type ForgeResponse struct {
	PatternID string `json:"pattern_id"`
}

// ReflexLogEvent is the per-turn analytics summary.
type ReflexLogEvent struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id,omitempty"`
	Model             string    `json:"model,omitempty"`
	TaskID            string    `json:"task_id,omitempty"`
	PatternsRetrieved int       `json:"patterns_retrieved"`
	PatternsApplied   int       `json:"patterns_applied"`
	PatternsSkipped   int       `json:"patterns_skipped"`
	PatternsForged    int       `json:"patterns_forged"`
	Coverage          float64   `json:"coverage"`
	LegacyFallback    bool      `json:"legacy_fallback"`
	Timestamp         time.Time `json:"timestamp"`
}

// ErrorResponse is the error body the API returns on non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}
