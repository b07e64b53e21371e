package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted when the stop hook finishes a turn.
	EventTypeTurnCompleted = "reflex.turn.completed"
)

// TurnCompletedEvent is a transport-neutral summary of one completed turn.
type TurnCompletedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Session       TurnSession  `json:"session"`
	Patterns      TurnPatterns `json:"patterns"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	Project string `json:"project,omitempty"`
	Model   string `json:"model,omitempty"`
	Hook    string `json:"hook"`
}

// TurnSession identifies the session and optional task.
type TurnSession struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

// TurnPatterns records how retrieved patterns were used.
type TurnPatterns struct {
	Retrieved      []string `json:"retrieved"`
	Applied        []string `json:"applied"`
	Skipped        []string `json:"skipped"`
	Rejected       []string `json:"rejected,omitempty"`
	Forged         []string `json:"forged,omitempty"`
	Coverage       float64  `json:"coverage"`
	LegacyFallback bool     `json:"legacy_fallback"`
}

// NewTurnCompletedEvent stamps a new event with an id and emission time.
func NewTurnCompletedEvent(source EventSource, session TurnSession, patterns TurnPatterns) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Session:       session,
		Patterns:      patterns,
	}
}
