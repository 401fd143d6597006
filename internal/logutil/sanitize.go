package logutil

import "strings"

// Sanitize removes newlines and control characters from remote-supplied
// strings (host bindings, endpoint URLs, container names) so they cannot
// inject fake log entries.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
