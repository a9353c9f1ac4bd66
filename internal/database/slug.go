package database

import (
	"strings"
	"unicode"
)

// Slugify converts a display name into a URL-safe slug: lowercase
// alphanumerics with single hyphens between words. An empty result becomes
// "model" so the uniquifier always has something to suffix.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen

	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "model"
	}
	return slug
}
