package postservice

import "strings"

// Slugify turns a title into a URL-safe slug: lowercase ASCII letters,
// digits and single hyphens, trimmed at both ends.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true

	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
