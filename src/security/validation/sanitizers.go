// backend/src/security/validation/sanitizers.go
package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictHTMLPolicy *bluemonday.Policy

func init() {
	strictHTMLPolicy = bluemonday.StrictPolicy()
}

// SanitizeText strips every HTML tag from free text before it is stored.
// Entities the policy escapes are decoded again so "Fish & Chips" stays
// readable in exports.
func SanitizeText(s string) string {
	return html.UnescapeString(strictHTMLPolicy.Sanitize(s))
}

// SanitizeForFormulaInjection prefixes a single quote when a spreadsheet
// would read the cell as a formula.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 {
		return s
	}

	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// StripUnprintable removes non-printable runes, keeping tab, newline and
// carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// CleanText is the full treatment for a user-supplied label: unprintables
// dropped, HTML removed, surrounding space trimmed.
func CleanText(s string) string {
	return strings.TrimSpace(SanitizeText(StripUnprintable(s)))
}
