package engine

import (
	"strings"
	"unicode"
)

// splitWhitespace splits s on runs of whitespace. Leading or trailing
// whitespace produces an empty boundary token, so joining the result with
// single spaces collapses runs but keeps the edges.
func splitWhitespace(s string) []string {
	out := make([]string, 0, 16)
	start := 0
	inSpace := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				out = append(out, s[start:i])
				inSpace = true
			}
			continue
		}
		if inSpace {
			start = i
			inSpace = false
		}
	}
	if inSpace {
		out = append(out, "")
	} else {
		out = append(out, s[start:])
	}
	return out
}

// cleanToken lowercases token and keeps only [a-z0-9_].
func cleanToken(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for _, r := range strings.ToLower(token) {
		if isWordChar(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWordChar(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}
