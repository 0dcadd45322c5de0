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
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// BackgroundResult holds the prose dossier and its source URLs.
type BackgroundResult struct {
	Background string
	Citations  []string
}

const backgroundPrompt = `Research the company "%s"%s with website %s.

Be careful to research THIS specific company and not another business with a
similar name. Use the website domain and location to disambiguate.

Write a thorough background: what the company does, its products and
services, customers and markets served, history and founding, ownership,
size indicators (employees, revenue if public), and anything notable about
its market position. Cite your sources.`

// backgroundStage asks the research provider for a prose background on the
// subject. Citations come from the structured response fields when present,
// otherwise from URL extraction over the prose.
func (p *Pipeline) backgroundStage(ctx context.Context, subject *model.Subject) (*BackgroundResult, error) {
	location := ""
	if loc := subject.Location(); loc != "" {
		location = fmt.Sprintf(" located in %s", loc)
	}
	prompt := fmt.Sprintf(backgroundPrompt, subject.Name, location, subject.WebsiteURL)

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
	p.audit(ctx, subject.ID, "background", "perplexity", prompt, resp.Text(), err, time.Since(start))
	if err != nil {
		return &BackgroundResult{}, eris.Wrap(err, "background: chat completion")
	}

	prose := strings.TrimSpace(resp.Text())
	if prose == "" {
		return &BackgroundResult{}, eris.New("background: empty completion")
	}

	citations := resp.SourceURLs()
	if len(citations) == 0 {
		citations = extract.URLs(prose)
	}

	zap.L().Debug("background: collected",
		zap.String("subject", subject.Name),
		zap.Int("chars", len(prose)),
		zap.Int("citations", len(citations)),
	)
	return &BackgroundResult{Background: prose, Citations: citations}, nil
}
