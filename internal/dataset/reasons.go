package dataset

import "regexp"

// ReasonUnknown is assigned when a complaint carries no usable reason text.
const ReasonUnknown = "Unknown"

type reasonRule struct {
	label   string
	pattern *regexp.Regexp
}

// reasonRules map free-text complaint reasons to categories. First match wins.
var reasonRules = []reasonRule{
	{"Delay", regexp.MustCompile(`(?i)\b(delay\w*|late|timescales?|turn\s*around|tat|await\w*|waiting|hold up)\b`)},
	{"Communication", regexp.MustCompile(`(?i)\b(communicat\w*|letters?|emails?|mail|calls?|phone\w*|contact\w*|clarit\w*|explain\w*|responses?)\b`)},
	{"Incorrect/Incomplete Information", regexp.MustCompile(`(?i)\b(incorrect\w*|incomplete|unclear|wrong|errors?|mismatch\w*|inaccura\w*|typos?|missing)\b`)},
	{"System/Portal", regexp.MustCompile(`(?i)\b(systems?|portal|website|login|access|bugs?|crash\w*|outages?|bizflow)\b`)},
	{"Procedure/Policy", regexp.MustCompile(`(?i)\b(procedures?|process\w*|rules?|requirements?|polic\w*|sop|compliance)\b`)},
	{"Scheme/Benefit", regexp.MustCompile(`(?i)\b(overpayments?|benefits?|pension\s*increase|value|calculation\w*|quotes?|estimates?|payments?|transfers?|contributions?)\b`)},
	{"Dispute", regexp.MustCompile(`(?i)\b(disputes?|client|trustees?|complainant)\b`)},
}

// Categorize maps reason text to a canonical category. Empty text is
// Unknown; text that matches no rule is Other.
func Categorize(text string) string {
	if text == "" {
		return ReasonUnknown
	}
	for _, r := range reasonRules {
		if r.pattern.MatchString(text) {
			return r.label
		}
	}
	return "Other"
}
