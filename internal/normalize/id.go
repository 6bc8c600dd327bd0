package normalize

import (
	"strings"
	"unicode"
)

// Slug lowercases a professional name and collapses everything that is not a
// letter or digit into single dashes.
func Slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(stripAccent(r))
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// AppointmentID builds the deterministic appointment identity from its
// natural key. Identical inputs always map to the same ID, which is what
// makes the sync upsert idempotent.
func AppointmentID(canonicalPhone, isoDate, hhmm, professional string) string {
	return strings.Join([]string{
		canonicalPhone,
		isoDate,
		strings.ReplaceAll(hhmm, ":", ""),
		Slug(professional),
	}, "_")
}

func stripAccent(r rune) rune {
	switch r {
	case 'á', 'à', 'ã', 'â', 'ä':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'õ', 'ô', 'ö':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ç':
		return 'c'
	case 'ñ':
		return 'n'
	}
	return r
}
