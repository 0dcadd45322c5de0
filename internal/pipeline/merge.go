package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/dossier-cli/internal/model"
)

// nameFolder strips diacritics so "José García" and "Jose Garcia" compare
// equal after normalization.
var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeExecName lowercases, folds diacritics, and strips everything but
// letters and spaces. The result is the comparison key for person identity.
func normalizeExecName(name string) string {
	folded, _, err := transform.String(nameFolder, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// samePerson reports whether two normalized names refer to one person:
// exact match, one contained in the other ("john smith" vs "john a smith"
// after middle initials are stripped to letters), or token overlap above
// half of the shorter name.
func samePerson(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return tokenOverlap(a, b) > 0.5
}

func tokenOverlap(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(aTokens))
	for _, t := range aTokens {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range bTokens {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	min := len(aTokens)
	if len(bTokens) < min {
		min = len(bTokens)
	}
	return float64(shared) / float64(min)
}

// mergeExecutives collapses candidates that describe the same person into
// one row. The merged row keeps the fuller name, the higher confidence,
// and never drops a profile URL either side carried. A person confirmed by
// two different sources with a profile URL is upgraded to high confidence.
func mergeExecutives(candidates []model.Executive) []model.Executive {
	var merged []model.Executive
	sources := make([]map[model.ExecutiveSource]struct{}, 0)

	for _, cand := range candidates {
		key := normalizeExecName(cand.Name)
		if key == "" {
			continue
		}

		matched := -1
		for i := range merged {
			if samePerson(normalizeExecName(merged[i].Name), key) {
				matched = i
				break
			}
		}
		if matched < 0 {
			merged = append(merged, cand)
			sources = append(sources, map[model.ExecutiveSource]struct{}{cand.Source: {}})
			continue
		}

		m := &merged[matched]
		if len(cand.Name) > len(m.Name) {
			m.Name = cand.Name
		}
		if m.Position == "" {
			m.Position = cand.Position
		}
		if m.ProfileURL == "" {
			m.ProfileURL = cand.ProfileURL
		}
		if len(cand.Summary) > len(m.Summary) {
			m.Summary = cand.Summary
		}
		m.Confidence = m.Confidence.Max(cand.Confidence)

		sources[matched][cand.Source] = struct{}{}
		if m.Source != cand.Source {
			m.Source = model.SourceMerged
		}
		if len(sources[matched]) >= 2 && m.ProfileURL != "" {
			m.Confidence = model.ConfidenceHigh
		}
	}
	return merged
}
