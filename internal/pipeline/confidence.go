package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Confidence policy lives in this file, one scoring function per entity
// type, so the rules can be read and changed in one place.

// scoreExecutive rates an automated executive candidate by its evidence:
// a verifiable profile URL beats a generic source URL beats nothing.
func scoreExecutive(profileURL, sourceURL string) model.Confidence {
	if profileURL != "" {
		return model.ConfidenceHigh
	}
	if sourceURL != "" {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

// scoreUserProfileURL rates a user-provided executive by verifying the
// profile URL they supplied. 405 and 429 count as reachable: profile sites
// routinely refuse HEAD or rate-limit automated checks, and a live refusal
// still proves the URL resolves.
func (p *Pipeline) scoreUserProfileURL(ctx context.Context, profileURL string) model.Confidence {
	if profileURL == "" {
		return model.ConfidenceMedium
	}
	u, err := url.Parse(profileURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return model.ConfidenceLow
	}

	headCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.FetchTimeout())
	defer cancel()

	status, err := p.fetch.Head(headCtx, profileURL)
	if err != nil {
		// Network failure says nothing about the URL itself.
		return model.ConfidenceMedium
	}
	if (status >= 200 && status < 300) || status == 405 || status == 429 {
		return model.ConfidenceHigh
	}
	return model.ConfidenceMedium
}

// scoreNewsContent rates a fetched news page against the subject. Name and
// location in the content is high; name alone is medium; a page that never
// mentions the subject is rejected outright.
func scoreNewsContent(content string, subject *model.Subject) (model.Confidence, bool) {
	lower := strings.ToLower(content)
	name := strings.ToLower(subject.Name)
	if name == "" || !strings.Contains(lower, name) {
		return "", false
	}
	for _, loc := range []string{subject.City, subject.State, subject.Country} {
		if loc != "" && strings.Contains(lower, strings.ToLower(loc)) {
			return model.ConfidenceHigh, true
		}
	}
	return model.ConfidenceMedium, true
}

// userExecutive builds the row for a CEO the caller asserted up front. It
// is flagged user-provided so automated replace cycles never touch it.
func (p *Pipeline) userExecutive(ctx context.Context, subject *model.Subject) model.Executive {
	return model.Executive{
		Name:         subject.CEOName,
		Position:     "CEO",
		ProfileURL:   subject.CEOProfile,
		Confidence:   p.scoreUserProfileURL(ctx, subject.CEOProfile),
		Source:       model.SourceUser,
		UserProvided: true,
	}
}
