package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMarks strips combining marks after canonical decomposition so that
// "Fábrica" and "Fabrica" produce the same token.
func foldMarks(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are folded to ASCII where possible and lowercased, digits and
// hyphens/underscores are kept, everything else becomes an underscore.
// Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	return strings.ToLower(SanitizeSegment(value))
}

// SanitizeSegment is SanitizeToken without lowercasing. Session names keep
// their spelling in image names.
func SanitizeSegment(value string) string {
	value = strings.TrimSpace(foldMarks(value))
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// DisplayName turns a session token back into a readable title for status output.
func DisplayName(token string) string {
	words := strings.FieldsFunc(token, func(r rune) bool { return r == '_' || r == '-' })
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(words, " "))
}
