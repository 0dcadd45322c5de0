package model

import "time"

// RecordStatus represents the lifecycle state of an enrichment record.
type RecordStatus string

const (
	RecordStatusNew        RecordStatus = "new"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusProcessed  RecordStatus = "processed"
	RecordStatusError      RecordStatus = "error"
)

// Subject identifies the company being researched. It is immutable input to
// the pipeline; the record store owns its durable identity.
type Subject struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WebsiteURL string    `json:"website_url"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	Country    string    `json:"country,omitempty"`
	CEOName    string    `json:"ceo_name,omitempty"`
	CEOProfile string    `json:"ceo_profile_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Location returns the subject's location as a single disambiguation string.
func (s Subject) Location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.City, s.State, s.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// Record is the accumulating dossier for a subject. The pipeline is its sole
// writer; stages persist into it incrementally and the final status
// transition is what callers observe.
type Record struct {
	SubjectID   string              `json:"subject_id"`
	Status      RecordStatus        `json:"status"`
	Background  string              `json:"background,omitempty"`
	Citations   []string            `json:"citations,omitempty"`
	Profile     *Profile            `json:"profile,omitempty"`
	Competitors []CompetitiveEntity `json:"competitors,omitempty"`
	Acquirers   []CompetitiveEntity `json:"acquirers,omitempty"`
	Error       string              `json:"error,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Profile is the fixed-shape structured company profile.
type Profile struct {
	Overview         string   `json:"overview"`
	Keywords         []string `json:"keywords"`
	BusinessModel    string   `json:"business_model"`
	TopStrengths     []string `json:"top_strengths"`
	DiscussionTopics []string `json:"discussion_topics"`
}

// UnknownValue is the sentinel used when a structured-profile field cannot
// be determined. Distinguishable from absence: "we tried and don't know".
const UnknownValue = "Unknown"

// UnknownProfile returns the stub profile used when structuring fails, with
// every field set to the explicit Unknown sentinel.
func UnknownProfile() *Profile {
	return &Profile{
		Overview:         UnknownValue,
		Keywords:         []string{UnknownValue},
		BusinessModel:    UnknownValue,
		TopStrengths:     []string{UnknownValue},
		DiscussionTopics: []string{UnknownValue},
	}
}

// EnrichSummary is returned to the caller after a pipeline run. It is always
// populated, even when individual stages degraded to empty results.
type EnrichSummary struct {
	SubjectID   string       `json:"subject_id"`
	Status      RecordStatus `json:"status"`
	Citations   int          `json:"citations"`
	Competitors int          `json:"competitors"`
	Acquirers   int          `json:"acquirers"`
	Executives  int          `json:"executives"`
	News        int          `json:"news"`
	DurationMS  int64        `json:"duration_ms"`
}
