package extract

import (
	"regexp"
	"strings"
)

// urlPattern matches bare http(s) URLs in prose. Deliberately loose; the
// trailing-punctuation trim below handles sentence-final URLs.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// URLs extracts deduplicated http(s) URLs from free text, in order of
// first appearance. Used as the citation fallback when a provider response
// carries no structured citation field.
func URLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?")
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
