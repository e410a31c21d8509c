package filestore

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFilename reduces name to a safe single path component: directory
// parts are dropped, accents are folded to ASCII, whitespace becomes '_',
// and anything outside [A-Za-z0-9._-] is removed. Leading and trailing dots
// and underscores are trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

// SafeName sanitizes a client-supplied file name while keeping its
// extension: a base name that sanitizes away becomes "image". Returns ""
// when name carries nothing usable at all.
func SafeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		ext = SanitizeFilename(name[i+1:])
		name = name[:i]
	}
	base := SanitizeFilename(name)
	if base == "" && ext == "" {
		return ""
	}
	if base == "" {
		base = "image"
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}
