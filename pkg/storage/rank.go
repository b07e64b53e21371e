package storage

import (
	"sort"
	"strings"
)

// minTermLength drops short, low-signal query words.
const minTermLength = 3

// RankPatterns orders patterns by how many query terms appear in their title,
// problem, solution or tags, keeping at most limit matches. Patterns that match
// no term are dropped. Ties keep the input order.
func RankPatterns(patterns []*Pattern, query string, limit int) []*Pattern {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		p     *Pattern
		score int
	}

	var matches []scored
	for _, p := range patterns {
		text := strings.ToLower(strings.Join([]string{p.Title, p.Problem, p.Solution, strings.Join(p.Tags, " ")}, " "))
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{p: p, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*Pattern, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.p)
	}
	return out
}

func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	}) {
		if len(f) < minTermLength || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
