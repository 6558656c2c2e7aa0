package util

import (
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/text/unicode/norm"
)

const slugSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Slugify turns a display name into a lowercase, dash separated, URL-safe
// string. Accents are stripped. An empty result falls back to "user".
func Slugify(s string) string {
	var b strings.Builder
	dash := false

	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}

	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "user"
	}

	if len(out) > 48 {
		out = strings.TrimSuffix(out[:48], "-")
	}

	return out
}

// SlugWithSuffix appends a short random suffix, used when the plain slug is taken
func SlugWithSuffix(base string) (string, error) {
	suffix, err := gonanoid.Generate(slugSuffixAlphabet, 6)
	if err != nil {
		return "", err
	}

	return base + "-" + suffix, nil
}
