package model

// Confidence is a three-valued trust score attached to an extracted fact.
// It describes evidence quality, not plausibility: a name seen in two
// independent sources with a verifiable profile URL is high; a name seen
// once with no link is low.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence levels for merge comparisons (higher wins).
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// Max returns the higher of two confidence levels.
func (c Confidence) Max(other Confidence) Confidence {
	if other.Rank() > c.Rank() {
		return other
	}
	return c
}

// ExecutiveSource identifies where an executive candidate came from.
type ExecutiveSource string

const (
	SourceLinkedIn     ExecutiveSource = "linkedin"
	SourceProviderText ExecutiveSource = "provider_text"
	SourceCompanySite  ExecutiveSource = "company_site"
	SourceMerged       ExecutiveSource = "merged"
	SourceUser         ExecutiveSource = "user"
)

// Executive is one resolved member of the leadership roster.
type Executive struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Position     string          `json:"position"`
	ProfileURL   string          `json:"profile_url,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Confidence   Confidence      `json:"confidence_level"`
	Source       ExecutiveSource `json:"source"`
	UserProvided bool            `json:"user_provided"`
}
