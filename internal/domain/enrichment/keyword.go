package enrichment

import "strings"

// KeywordVocabulary is checked in order; the first term found anywhere in the
// text wins regardless of its position.
var KeywordVocabulary = []string{"inhibitor", "agonist", "antagonist", "modulator", "blocker", "activator"}

// Keyword maps mechanism text to a canonical short keyword. Text with no
// vocabulary term yields its last whitespace token; empty text yields
// SentinelUnknown.
func Keyword(mechanismText string) string {
	lower := strings.ToLower(mechanismText)
	for _, kw := range KeywordVocabulary {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	fields := strings.Fields(mechanismText)
	if len(fields) == 0 {
		return SentinelUnknown
	}
	return fields[len(fields)-1]
}
