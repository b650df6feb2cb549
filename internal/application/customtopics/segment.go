package customtopics

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// SplitSentences cuts text on runs of . ! ? and keeps trimmed candidates
// longer than minLen characters, at most limit of them (limit <= 0: no cap).
func SplitSentences(text string, minLen, limit int) []string {
	var out []string
	for _, part := range sentenceEnd.Split(text, -1) {
		s := strings.TrimSpace(part)
		if utf8.RuneCountInString(s) <= minLen {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
