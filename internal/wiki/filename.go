package wiki

import (
	"strings"
	"unicode"
)

const maxFilenameRunes = 100

// SafeFilename maps an article title onto a filesystem-safe stem.
// Word characters, whitespace, and hyphens survive; everything else
// becomes an underscore. The result is capped at 100 runes so derived
// paths stay well under filesystem limits.
func SafeFilename(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if n == maxFilenameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		n++
	}
	return b.String()
}
