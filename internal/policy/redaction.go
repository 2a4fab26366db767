// Package policy holds the rules applied to transcripts before they are
// persisted.
package policy

import "regexp"

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: longer numeric identifiers go first so a CUIT or card is
// not half-consumed by the phone rule.
var rules = []rule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\b(?:20|23|24|27|30|33|34)-?\d{8}-?\d\b`), "[REDACTED_CUIT]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`\b\d{1,2}\.\d{3}\.\d{3}\b`), "[REDACTED_DNI]"},
}

// RedactPII masks emails, card numbers, CUIT/CUIL, phone numbers and dotted
// DNI numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
