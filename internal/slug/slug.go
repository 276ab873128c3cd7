// Package slug turns free text into URL-safe identifiers.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when the text has no usable characters left after cleaning.
const Fallback = "tag"

// Make returns the URL-safe form of text: diacritics are stripped, letters are
// lower-cased and every run of other characters becomes a single '-'.
func Make(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	cleaned, _, err := transform.String(t, text)
	if err != nil {
		cleaned = text
	}

	var b strings.Builder
	b.Grow(len(cleaned))
	pendingDash := false
	for _, r := range cleaned {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingDash = true
	}

	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// WithSuffix returns the n-th variant of base. The first variant is base itself,
// the following ones are base-2, base-3 and so on.
func WithSuffix(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
