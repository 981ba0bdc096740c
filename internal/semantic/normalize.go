package semantic

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// suffixRe strips common business entity suffixes before comparison.
var suffixRe = regexp.MustCompile(`(?i),?\s*(inc\.?|llc\.?|ltd\.?|co\.?|corp\.?|corporation|company|llp|lp|pllc|plc|gmbh|pty)\s*$`)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)

// NormalizeName lowercases, folds diacritics, strips entity suffixes and
// punctuation. "Café Brûlée, LLC" and "cafe brulee" normalize identically.
func NormalizeName(name string) string {
	folded, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), name)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(strings.TrimSpace(folded))
	s = suffixRe.ReplaceAllString(s, "")
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// NameMatch reports whether a page title plausibly names the business.
// Either normalized string containing the other counts; short names must
// match a whole token run to avoid "Ace" matching "Placement".
func NameMatch(businessName, pageTitle string) bool {
	name := NormalizeName(businessName)
	title := NormalizeName(pageTitle)
	if name == "" || title == "" {
		return false
	}

	if len(name) < 5 {
		for _, tok := range strings.Fields(title) {
			if tok == name {
				return true
			}
		}
		return false
	}

	return strings.Contains(title, name) || strings.Contains(name, title)
}
