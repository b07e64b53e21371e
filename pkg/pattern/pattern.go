// Package pattern defines the externally sourced recommendation object
// passed between the retrieval API, the handoff file and the stop hook.
package pattern

import (
	"encoding/json"
	"fmt"
)

// Pattern is opaque beyond ID and Title. Fields not modelled here are kept in
// Extra so a pattern survives a save/load round-trip unchanged.
type Pattern struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Problem     string   `json:"problem,omitempty"`
	Solution    string   `json:"solution,omitempty"`
	SuccessRate float64  `json:"success_rate,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// known lists the JSON keys decoded into named fields.
var known = []string{"id", "title", "problem", "solution", "success_rate", "tags"}

// plain has Pattern's fields without its methods.
type plain struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Problem     string   `json:"problem,omitempty"`
	Solution    string   `json:"solution,omitempty"`
	SuccessRate float64  `json:"success_rate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UnmarshalJSON decodes the named fields and keeps every other key in Extra.
// A numeric id is accepted and stored in its decimal form.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding pattern: %w", err)
	}

	if id, ok := raw["id"]; ok {
		var num json.Number
		if err := json.Unmarshal(id, &num); err == nil {
			raw["id"] = json.RawMessage(`"` + num.String() + `"`)
		}
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("decoding pattern: %w", err)
	}

	var v plain
	if err := json.Unmarshal(normalized, &v); err != nil {
		return fmt.Errorf("decoding pattern: %w", err)
	}

	for _, k := range known {
		delete(raw, k)
	}

	*p = Pattern{
		ID:          v.ID,
		Title:       v.Title,
		Problem:     v.Problem,
		Solution:    v.Solution,
		SuccessRate: v.SuccessRate,
		Tags:        v.Tags,
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

// MarshalJSON writes the named fields merged with Extra.
func (p Pattern) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(plain{
		ID:          p.ID,
		Title:       p.Title,
		Problem:     p.Problem,
		Solution:    p.Solution,
		SuccessRate: p.SuccessRate,
		Tags:        p.Tags,
	})
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(p.Extra)+len(known))
	for k, v := range p.Extra {
		merged[k] = v
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}

	return json.Marshal(merged)
}

// IDs returns the ids of patterns in order.
func IDs(patterns []Pattern) []string {
	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		ids = append(ids, p.ID)
	}
	return ids
}
