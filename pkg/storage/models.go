package storage

import (
	"time"

	"github.com/papercomputeco/reflex/pkg/pattern"
)

// Capture is a stored user/assistant exchange.
type Capture struct {
	ID                string
	SessionID         string
	UserID            string
	UserQuery         string
	AssistantResponse string
	Model             string
	TaskID            string
	PatternsRetrieved []string
	PatternsApplied   []string
	CreatedAt         time.Time
}

// Pattern is a stored pattern with its provenance.
type Pattern struct {
	ID          string
	Title       string
	Problem     string
	Solution    string
	Tags        []string
	SuccessRate float64
	UserID      string
	SessionID   string
	Source      string
	CreatedAt   time.Time
}

// ToPattern converts the record to the wire pattern.
func (p *Pattern) ToPattern() pattern.Pattern {
	return pattern.Pattern{
		ID:          p.ID,
		Title:       p.Title,
		Problem:     p.Problem,
		Solution:    p.Solution,
		SuccessRate: p.SuccessRate,
		Tags:        p.Tags,
	}
}

// ReflexLog is a stored turn summary.
type ReflexLog struct {
	ID                string
	SessionID         string
	UserID            string
	Model             string
	TaskID            string
	PatternsRetrieved int
	PatternsApplied   int
	PatternsSkipped   int
	PatternsForged    int
	Coverage          float64
	LegacyFallback    bool
	CreatedAt         time.Time
}
