// Package intent maps a user message to exactly one core.Intent using an
// ordered keyword table. The first rule whose keyword occurs in the
// lowercased message wins; messages matching no rule are plain chat.
package intent

import (
	"regexp"
	"strings"

	"github.com/hupe1980/trekka/core"
)

// Rule binds a set of trigger phrases to an intent.
type Rule struct {
	Intent   core.Intent
	Keywords []string
}

// rules is evaluated top to bottom. The order is part of the contract:
// "save the weather in Pokhara" is a save request, not a weather lookup.
var rules = []Rule{
	{Intent: core.IntentSavePreference, Keywords: []string{"save"}},
	{Intent: core.IntentWeather, Keywords: []string{"weather"}},
	{Intent: core.IntentNews, Keywords: []string{"news"}},
	{Intent: core.IntentEncyclopedia, Keywords: []string{"wikipedia"}},
	{Intent: core.IntentWebSearch, Keywords: []string{"search"}},
	{Intent: core.IntentKnowledgeLookup, Keywords: []string{"local information"}},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Intent: r.Intent, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Classify returns the intent for text. Matching is a case-insensitive
// substring test, so "saved" and "newsletter" also trigger.
func Classify(text string) core.Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Intent
			}
		}
	}
	return core.IntentChat
}

var spaceRe = regexp.MustCompile(`\s+`)

func wordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
}

// HasKeyword reports whether text contains one of the trigger words of in
// as a whole word. Unlike Classify, "saved" does not count as "save".
func HasKeyword(text string, in core.Intent) bool {
	for _, r := range rules {
		if r.Intent != in {
			continue
		}
		for _, kw := range r.Keywords {
			if wordPattern(kw).MatchString(text) {
				return true
			}
		}
	}
	return false
}

// StripKeywords removes the trigger words of in from text as whole words,
// case-insensitively, and collapses the remaining whitespace. It is used to
// turn "save Kathmandu" into "Kathmandu".
func StripKeywords(text string, in core.Intent) string {
	out := text
	for _, r := range rules {
		if r.Intent != in {
			continue
		}
		for _, kw := range r.Keywords {
			out = wordPattern(kw).ReplaceAllString(out, " ")
		}
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
}
