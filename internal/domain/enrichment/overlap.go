package enrichment

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold applies Unicode case folding. A Caser is stateful, so each call gets
// its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Tokens returns the case-folded set of whitespace-delimited words in s.
func Tokens(s string) map[string]struct{} {
	fields := strings.Fields(fold(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// TermsOverlap reports whether candidate shares at least half (rounded up) of
// the disease name's distinct words. An empty disease name never matches.
func TermsOverlap(disease, candidate string) bool {
	want := Tokens(disease)
	if len(want) == 0 {
		return false
	}
	have := Tokens(candidate)
	common := 0
	for w := range want {
		if _, ok := have[w]; ok {
			common++
		}
	}
	return common >= (len(want)+1)/2
}

// MatchesDisease reports whether any candidate text of r overlaps disease.
func (r IndicationRecord) MatchesDisease(disease string) bool {
	for _, text := range r.CandidateTexts() {
		if TermsOverlap(disease, text) {
			return true
		}
	}
	return false
}

// ClassifyIndications derives the approval tier of a drug for disease.
// Matching records yield Approved when any of them is phase 4 and
// NotApproved otherwise. No records, or no matching record, yield Unknown.
func ClassifyIndications(disease string, records []IndicationRecord) ApprovalTier {
	matched := false
	for _, r := range records {
		if !r.MatchesDisease(disease) {
			continue
		}
		if r.IsApprovedPhase() {
			return ApprovalApproved
		}
		matched = true
	}
	if matched {
		return ApprovalNotApproved
	}
	return ApprovalUnknown
}

// EqualFold compares two names under Unicode case folding.
func EqualFold(a, b string) bool {
	return fold(strings.TrimSpace(a)) == fold(strings.TrimSpace(b))
}
