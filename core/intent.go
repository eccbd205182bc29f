package core

// Intent is the coarse category of a user utterance. The set is closed; every
// value must have exactly one capability handler registered.
type Intent int

const (
	// IntentChat routes to plain conversational generation (the fallback).
	IntentChat Intent = iota
	// IntentKnowledgeLookup routes to retrieval-grounded generation.
	IntentKnowledgeLookup
	// IntentEncyclopedia routes to an encyclopedic summary lookup.
	IntentEncyclopedia
	// IntentWebSearch routes to a web search returning snippets verbatim.
	IntentWebSearch
	// IntentWeather routes to a multi-day forecast lookup.
	IntentWeather
	// IntentNews routes to a trusted-domain news digest.
	IntentNews
	// IntentSavePreference stores a favorite destination for the user.
	IntentSavePreference
)

var intentNames = [...]string{
	IntentChat:            "chat",
	IntentKnowledgeLookup: "knowledge_lookup",
	IntentEncyclopedia:    "encyclopedia",
	IntentWebSearch:       "web_search",
	IntentWeather:         "weather",
	IntentNews:            "news",
	IntentSavePreference:  "save_preference",
}

// String returns the snake_case name of the intent.
func (i Intent) String() string {
	if !i.Valid() {
		return "unknown"
	}
	return intentNames[i]
}

// Valid reports whether i is a member of the closed enumeration.
func (i Intent) Valid() bool { return i >= IntentChat && int(i) < len(intentNames) }

// Intents returns every intent in declaration order.
func Intents() []Intent {
	out := make([]Intent, len(intentNames))
	for i := range intentNames {
		out[i] = Intent(i)
	}
	return out
}

// ParseIntent resolves a snake_case name back to its Intent.
func ParseIntent(name string) (Intent, bool) {
	for i, n := range intentNames {
		if n == name {
			return Intent(i), true
		}
	}
	return IntentChat, false
}
