package model

import "time"

// NewsItem is one validated news mention of the subject.
type NewsItem struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     string     `json:"summary,omitempty"`
	PublishedAt time.Time  `json:"published_at"`
	Confidence  Confidence `json:"confidence_level"`
}

// ProviderCall is the audit-log row for one provider request/response pair.
// It is written verbatim before any parsing is attempted, so a parse failure
// never loses the original evidence.
type ProviderCall struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subject_id"`
	Stage      string    `json:"stage"`
	Provider   string    `json:"provider"`
	Request    string    `json:"request"`
	Response   string    `json:"response"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CalledAt   time.Time `json:"called_at"`
}

const (
	CallStatusOK     = "ok"
	CallStatusFailed = "failed"
)
