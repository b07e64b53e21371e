package pipeline

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/utils"
)

const (
	contextOpenTag  = "<reflex-patterns>"
	contextCloseTag = "</reflex-patterns>"

	maxRenderedField = 400
)

// ackInstructions tells the assistant how to acknowledge patterns. The marker
// grammar must stay in sync with pkg/ack.
const ackInstructions = `When you finish, list the pattern ids you used and the ones you did not:
[SELECT]
id: <pattern id you applied>
[/SELECT]
[SKIP]
id: <pattern id you did not use>
[/SKIP]
If this turn produced a reusable solution worth keeping, add [FORGE: "<short title>"].`

// RenderContext formats retrieved patterns for injection into the
// conversation. Pre-formatted text from the API replaces the default listing
// but the ids are always listed so they can be acknowledged. It returns ""
// when there are no patterns.
func RenderContext(patterns []pattern.Pattern, formatted string) string {
	if len(patterns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(contextOpenTag)
	sb.WriteString("\n")

	if formatted = strings.TrimSpace(formatted); formatted != "" {
		sb.WriteString(formatted)
		sb.WriteString("\n\nPattern ids: ")
		sb.WriteString(strings.Join(pattern.IDs(patterns), ", "))
		sb.WriteString("\n")
	} else {
		sb.WriteString("Relevant patterns from past work:\n")
		for _, p := range patterns {
			writePattern(&sb, p)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(ackInstructions)
	sb.WriteString("\n")
	sb.WriteString(contextCloseTag)
	sb.WriteString("\n")

	return sb.String()
}

func writePattern(sb *strings.Builder, p pattern.Pattern) {
	fmt.Fprintf(sb, "- id: %s | %s", p.ID, utils.OneLine(p.Title))
	if rate := p.SuccessRate; rate > 0 {
		// The API reports either a fraction or a percentage.
		if rate <= 1 {
			rate *= 100
		}
		fmt.Fprintf(sb, " (success %.0f%%)", rate)
	}
	sb.WriteString("\n")

	if p.Problem != "" {
		fmt.Fprintf(sb, "  Problem: %s\n", utils.Truncate(utils.OneLine(p.Problem), maxRenderedField))
	}
	if p.Solution != "" {
		fmt.Fprintf(sb, "  Solution: %s\n", utils.Truncate(utils.OneLine(p.Solution), maxRenderedField))
	}
}
