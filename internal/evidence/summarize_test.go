package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forecastlab/forecastd/internal/domain"
)

func TestSummarizeFormatsTitleAndSnippet(t *testing.T) {
	items := []domain.EvidenceItem{
		{Title: "Launch confirmed", Snippet: "The mission launched on schedule", URL: "https://example.com/a"},
		{Title: "Background"},
	}
	out := Summarize(items, 4000)

	assert.Contains(t, out, "- Launch confirmed: The mission launched on schedule (https://example.com/a)")
	assert.Contains(t, out, "- Background")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestSummarizeHonorsCharBudget(t *testing.T) {
	items := []domain.EvidenceItem{
		{Title: "first", Snippet: strings.Repeat("x", 50)},
		{Title: "second", Snippet: strings.Repeat("y", 50)},
		{Title: "third", Snippet: strings.Repeat("z", 50)},
	}

	out := Summarize(items, 130)
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "third")
	assert.LessOrEqual(t, len(out), 130)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, "", Summarize(nil, 100))
}
