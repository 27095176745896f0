package projectstore

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxSlugBytes bounds a slug to a single path component on common filesystems.
const maxSlugBytes = 255

const illegalChars = `/?<>\:*|"`

var windowsReserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com0": true, "com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt0": true, "lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// Slugify derives the directory name for a project. The result is
// deterministic, contains no path separators or control characters, and is
// empty when nothing usable remains. Spaces and punctuation other than the
// characters illegal on Windows are kept, so "My Scene!" stays "My Scene!".
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(name) {
		if strings.ContainsRune(illegalChars, r) || r < 0x20 || (r >= 0x80 && r <= 0x9f) {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()

	if strings.Trim(s, ".") == "" {
		return ""
	}

	stem, _, _ := strings.Cut(strings.ToLower(s), ".")
	if windowsReserved[stem] {
		return ""
	}

	s = strings.TrimRight(s, ". ")
	if len(s) > maxSlugBytes {
		s = truncate(s, maxSlugBytes)
		s = strings.TrimRight(s, ". ")
	}

	return s
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
