package model

// CompetitiveKind distinguishes competitors from potential acquirers.
type CompetitiveKind string

const (
	KindCompetitor CompetitiveKind = "competitor"
	KindAcquirer   CompetitiveKind = "acquirer"
)

// MinCompetitiveSources is the citation floor for competitive entities.
// An entity with fewer independent sources is never persisted.
const MinCompetitiveSources = 2

// CompetitiveEntity is a competitor or acquirer claim with its citations.
type CompetitiveEntity struct {
	Name      string          `json:"name"`
	Kind      CompetitiveKind `json:"kind"`
	Rationale string          `json:"rationale"`
	Sources   []string        `json:"sources"`
}

// WellSourced reports whether the entity carries enough independent
// citations to be persisted.
func (e CompetitiveEntity) WellSourced() bool {
	return len(dedupStrings(e.Sources)) >= MinCompetitiveSources
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
