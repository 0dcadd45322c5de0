package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/extract"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
)

const profilePrompt = `Convert the following research about the company "%s" into a JSON object
with exactly these fields:
- overview: string (2-3 sentence company overview)
- keywords: array of strings (5-10 industry and capability keywords)
- business_model: string (how the company makes money)
- top_strengths: array of strings (up to 5 competitive strengths)
- discussion_topics: array of strings (talking points for an introductory call)

Use the string "Unknown" (or ["Unknown"] for arrays) for anything the
research does not support. Return ONLY the JSON object.

Research:
%s

Website content:
%s`

// profileStage converts the background prose into the fixed-shape profile.
// Any failure, provider or parse, yields the Unknown stub rather than an
// absent profile.
func (p *Pipeline) profileStage(ctx context.Context, subject *model.Subject, background, siteContext string) (*model.Profile, error) {
	if strings.TrimSpace(background) == "" && strings.TrimSpace(siteContext) == "" {
		return model.UnknownProfile(), eris.New("profile: no source material")
	}
	prompt := fmt.Sprintf(profilePrompt, subject.Name, background, siteContext)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.ProviderTimeout())
	defer cancel()

	start := time.Now()
	resp, err := p.anthropic.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: 2048,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	p.audit(ctx, subject.ID, "profile", "anthropic", prompt, resp.Text(), err, time.Since(start))
	if err != nil {
		return model.UnknownProfile(), eris.Wrap(err, "profile: create message")
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "profile")

	var profile model.Profile
	if !extract.Unmarshal(resp.Text(), &profile) {
		zap.L().Warn("profile: no parseable json in completion",
			zap.String("subject", subject.Name))
		return model.UnknownProfile(), eris.New("profile: unparseable completion")
	}
	fillUnknowns(&profile)
	return &profile, nil
}

// fillUnknowns replaces empty profile fields with the explicit Unknown
// sentinel so a partially answered profile is still fully shaped.
func fillUnknowns(p *model.Profile) {
	if strings.TrimSpace(p.Overview) == "" {
		p.Overview = model.UnknownValue
	}
	if strings.TrimSpace(p.BusinessModel) == "" {
		p.BusinessModel = model.UnknownValue
	}
	if len(p.Keywords) == 0 {
		p.Keywords = []string{model.UnknownValue}
	}
	if len(p.TopStrengths) == 0 {
		p.TopStrengths = []string{model.UnknownValue}
	}
	if len(p.DiscussionTopics) == 0 {
		p.DiscussionTopics = []string{model.UnknownValue}
	}
}
