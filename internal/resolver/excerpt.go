package resolver

import (
	"strings"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
)

const ellipsis = "…"

// Excerpt returns the first paragraph of content, shortened to at most
// placescout.MaxExcerptRunes characters. A shortened excerpt is cut at a word
// boundary and ends with an ellipsis.
func Excerpt(content string) string {
	paragraph, _, _ := strings.Cut(content, "\n\n")
	paragraph = strings.TrimSpace(paragraph)

	runes := []rune(paragraph)
	if len(runes) <= placescout.MaxExcerptRunes {
		return paragraph
	}

	// Leave room for the ellipsis.
	head := string(runes[:placescout.MaxExcerptRunes-1])
	if i := strings.LastIndex(head, " "); i > 0 {
		head = head[:i]
	}
	return strings.TrimRight(head, " \t\n") + ellipsis
}
