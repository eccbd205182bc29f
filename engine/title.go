package engine

import (
	"regexp"
	"strings"
	"unicode"
)

var markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)

// sanitizeTitle strips markup and stray symbols from a generated title and
// keeps at most maxWords whitespace-separated words.
func sanitizeTitle(title string, maxWords int) string {
	title = markdownLinkPattern.ReplaceAllString(title, "$1")
	if first, _, found := strings.Cut(strings.TrimSpace(title), "\n"); found {
		title = first
	}

	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) ||
			r == '-' || r == '\'' || r == '&' || r == ',' {
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.TrimRight(strings.Join(words, " "), " ,-'")
}
