// Package ack extracts pattern acknowledgments from a final assistant
// response. It performs no I/O.
//
// Grammar:
//
//	applied region:  [SELECT] ... [/SELECT]
//	skipped region:  [SKIP] ... [/SKIP]
//	inside a region: id: <token>        (token = [A-Za-z0-9_-]+, len >= 8)
//	forge request:   [FORGE: "<title>"]
//
// Tags are case-insensitive and regions may span lines. When neither region
// appears, a pending pattern counts as applied if a single line mentions both
// its title and the word "applied".
package ack

import (
	"regexp"
	"strings"

	"github.com/papercomputeco/reflex/pkg/pattern"
)

// MinIDLength is the shortest accepted id token.
const MinIDLength = 8

// LegacyKeyword marks a line as an applied-pattern mention in the fallback.
const LegacyKeyword = "applied"

var (
	selectRegion = regexp.MustCompile(`(?is)\[SELECT\](.*?)\[/SELECT\]`)
	skipRegion   = regexp.MustCompile(`(?is)\[SKIP\](.*?)\[/SKIP\]`)
	idLine       = regexp.MustCompile(`(?i)\bid:\s*([A-Za-z0-9_-]+)`)
	forgeMarker  = regexp.MustCompile(`(?i)\[FORGE:\s*"([^"\n]+)"\s*\]`)
)

// Result is the outcome of parsing one response.
type Result struct {
	// Applied and Skipped hold accepted ids, first occurrence order.
	Applied []string
	Skipped []string

	// Rejected holds tokens dropped for being shorter than MinIDLength.
	Rejected []string

	// Legacy is true when Applied came from the title heuristic.
	Legacy bool

	// Forged holds titles requested via FORGE markers.
	Forged []string

	// Total is the number of pending patterns the coverage refers to.
	Total int

	// Coverage is (applied+skipped)/total, 0 when nothing was pending.
	Coverage float64
}

// HasMarkers reports whether the response contained either region.
func (r Result) HasMarkers() bool {
	return len(r.Applied)+len(r.Skipped)+len(r.Rejected) > 0
}

// Parse extracts acknowledgments from response for the pending patterns.
func Parse(response string, pending []pattern.Pattern) Result {
	result := Result{Total: len(pending)}

	selectMatches := selectRegion.FindAllStringSubmatch(response, -1)
	skipMatches := skipRegion.FindAllStringSubmatch(response, -1)

	result.Applied, result.Rejected = collectIDs(selectMatches, result.Rejected)
	result.Skipped, result.Rejected = collectIDs(skipMatches, result.Rejected)

	if len(selectMatches) == 0 && len(skipMatches) == 0 && len(pending) > 0 {
		result.Applied = legacyApplied(response, pending)
		result.Legacy = len(result.Applied) > 0
	}

	result.Forged = Forged(response)
	result.Coverage = Coverage(len(result.Applied), len(result.Skipped), len(pending))

	return result
}

// Coverage returns (applied+skipped)/total, or 0 when total is 0.
func Coverage(applied, skipped, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(applied+skipped) / float64(total)
}

// Forged returns the distinct titles of FORGE markers in response.
func Forged(response string) []string {
	var titles []string
	seen := make(map[string]bool)
	for _, m := range forgeMarker.FindAllStringSubmatch(response, -1) {
		title := strings.TrimSpace(m[1])
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles
}

func collectIDs(regions [][]string, rejected []string) ([]string, []string) {
	var ids []string
	seen := make(map[string]bool)

	for _, region := range regions {
		for _, m := range idLine.FindAllStringSubmatch(region[1], -1) {
			token := m[1]
			if len(token) < MinIDLength {
				rejected = append(rejected, token)
				continue
			}
			if seen[token] {
				continue
			}
			seen[token] = true
			ids = append(ids, token)
		}
	}
	return ids, rejected
}

func legacyApplied(response string, pending []pattern.Pattern) []string {
	var applied []string
	lines := strings.Split(strings.ToLower(response), "\n")

	for _, p := range pending {
		title := strings.ToLower(strings.TrimSpace(p.Title))
		if title == "" {
			continue
		}
		for _, line := range lines {
			if strings.Contains(line, LegacyKeyword) && strings.Contains(line, title) {
				applied = append(applied, p.ID)
				break
			}
		}
	}
	return applied
}
