package evidence

import (
	"strings"

	"github.com/forecastlab/forecastd/internal/domain"
)

// Summarize renders gathered evidence into a bounded-length text block of
// title + snippet pairs for embedding in a judge prompt. Items are emitted in
// rank order until the character budget is reached; a non-positive budget
// falls back to 4000 characters. Pure function, no shared state.
func Summarize(items []domain.EvidenceItem, charBudget int) string {
	if charBudget <= 0 {
		charBudget = 4000
	}

	var b strings.Builder
	for _, item := range items {
		line := "- " + item.Title
		if item.Snippet != "" {
			line += ": " + item.Snippet
		}
		if item.URL != "" {
			line += " (" + item.URL + ")"
		}
		line += "\n"

		if b.Len()+len(line) > charBudget {
			break
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}
