package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/extract"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// CompetitiveResult holds the filtered competitor and acquirer lists.
type CompetitiveResult struct {
	Competitors []model.CompetitiveEntity
	Acquirers   []model.CompetitiveEntity
}

const competitivePrompt = `Identify the direct competitors and the most plausible acquirers of the
company "%s"%s (website %s).

Requirements:
- Every entry MUST be backed by at least 2 independent source URLs. Do not
  include an entry you cannot support with 2 sources.
- Acquirers are companies or investor groups with a credible strategic or
  financial rationale to buy this specific company.

Return ONLY a JSON object:
{
  "competitors": [{"name": "...", "rationale": "...", "sources": ["url", "url"]}],
  "acquirers":   [{"name": "...", "rationale": "...", "sources": ["url", "url"]}]
}`

type competitiveEnvelope struct {
	Competitors []model.CompetitiveEntity `json:"competitors"`
	Acquirers   []model.CompetitiveEntity `json:"acquirers"`
}

// competitiveStage asks the research provider for competitors and likely
// acquirers. Entities with fewer than two distinct sources are dropped
// before they ever touch the store, whatever the prompt promised.
func (p *Pipeline) competitiveStage(ctx context.Context, subject *model.Subject) (*CompetitiveResult, error) {
	location := ""
	if loc := subject.Location(); loc != "" {
		location = fmt.Sprintf(" located in %s", loc)
	}
	prompt := fmt.Sprintf(competitivePrompt, subject.Name, location, subject.WebsiteURL)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.ProviderTimeout())
	defer cancel()

	temp := 0.2
	start := time.Now()
	resp, err := p.perplexity.ChatCompletion(callCtx, perplexity.ChatCompletionRequest{
		Model: p.cfg.Perplexity.Model,
		Messages: []perplexity.Message{
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
	})
	p.audit(ctx, subject.ID, "competitive", "perplexity", prompt, resp.Text(), err, time.Since(start))
	if err != nil {
		return &CompetitiveResult{}, eris.Wrap(err, "competitive: chat completion")
	}

	var envelope competitiveEnvelope
	if !extract.Unmarshal(resp.Text(), &envelope) {
		return &CompetitiveResult{}, eris.New("competitive: unparseable completion")
	}

	result := &CompetitiveResult{
		Competitors: filterWellSourced(envelope.Competitors, model.KindCompetitor),
		Acquirers:   filterWellSourced(envelope.Acquirers, model.KindAcquirer),
	}
	dropped := len(envelope.Competitors) + len(envelope.Acquirers) -
		len(result.Competitors) - len(result.Acquirers)
	if dropped > 0 {
		zap.L().Debug("competitive: dropped under-sourced entities",
			zap.String("subject", subject.Name),
			zap.Int("dropped", dropped),
		)
	}
	return result, nil
}

// filterWellSourced keeps only entities with the required citation floor
// and stamps the kind on the survivors.
func filterWellSourced(in []model.CompetitiveEntity, kind model.CompetitiveKind) []model.CompetitiveEntity {
	out := make([]model.CompetitiveEntity, 0, len(in))
	for _, e := range in {
		if e.Name == "" || !e.WellSourced() {
			continue
		}
		e.Kind = kind
		out = append(out, e)
	}
	return out
}
