package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dossier-cli/internal/extract"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/jina"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

const executivesPrompt = `Find the current leadership team of the company "%s"%s (website %s).

Return ONLY a JSON array of people:
[{"name": "...", "position": "...", "profile_url": "...", "summary": "..."}]

- profile_url is a LinkedIn or company bio URL if you found one, else "".
- summary is one sentence on their background, else "".
- Only include people you actually found evidence for at THIS company.`

const structurePrompt = `The following are web search results about the leadership of the company
"%s". Extract the executives mentioned.

Return ONLY a JSON array:
[{"name": "...", "position": "...", "profile_url": "...", "summary": "..."}]

Use "" for anything a result does not state. Do not invent people.

Search results:
%s`

// execCandidate is the JSON shape both provider paths emit.
type execCandidate struct {
	Name       string `json:"name"`
	Position   string `json:"position"`
	ProfileURL string `json:"profile_url"`
	Summary    string `json:"summary"`
}

// executivesStage resolves the leadership roster from two independent
// searches run concurrently, then merges candidates that name the same
// person. Either search failing alone degrades to the other's results.
func (p *Pipeline) executivesStage(ctx context.Context, subject *model.Subject) ([]model.Executive, error) {
	var mu sync.Mutex
	var candidates []model.Executive
	add := func(execs []model.Executive) {
		mu.Lock()
		candidates = append(candidates, execs...)
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	var pplxErr, searchErr error

	g.Go(func() error {
		execs, err := p.providerExecutives(gCtx, subject)
		if err != nil {
			pplxErr = err
			return nil
		}
		add(execs)
		return nil
	})

	g.Go(func() error {
		execs, err := p.searchExecutives(gCtx, subject)
		if err != nil {
			searchErr = err
			return nil
		}
		add(execs)
		return nil
	})

	_ = g.Wait()

	merged := mergeExecutives(candidates)
	zap.L().Debug("executives: resolved roster",
		zap.String("subject", subject.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("merged", len(merged)),
	)

	if pplxErr != nil && searchErr != nil {
		return merged, eris.Errorf("executives: both searches failed: %v; %v", pplxErr, searchErr)
	}
	return merged, nil
}

// providerExecutives asks the research provider directly for the roster.
func (p *Pipeline) providerExecutives(ctx context.Context, subject *model.Subject) ([]model.Executive, error) {
	location := ""
	if loc := subject.Location(); loc != "" {
		location = fmt.Sprintf(" located in %s", loc)
	}
	prompt := fmt.Sprintf(executivesPrompt, subject.Name, location, subject.WebsiteURL)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.ProviderTimeout())
	defer cancel()

	temp := 0.1
	start := time.Now()
	resp, err := p.perplexity.ChatCompletion(callCtx, perplexity.ChatCompletionRequest{
		Model: p.cfg.Perplexity.Model,
		Messages: []perplexity.Message{
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
	})
	p.audit(ctx, subject.ID, "executives", "perplexity", prompt, resp.Text(), err, time.Since(start))
	if err != nil {
		return nil, eris.Wrap(err, "executives: chat completion")
	}

	sourceURL := ""
	if urls := resp.SourceURLs(); len(urls) > 0 {
		sourceURL = urls[0]
	}

	var parsed []execCandidate
	if !extract.Unmarshal(resp.Text(), &parsed) {
		return nil, eris.New("executives: unparseable completion")
	}
	return toExecutives(parsed, model.SourceProviderText, sourceURL), nil
}

// searchExecutives runs a web search for the subject's leadership and has
// the secondary LLM structure the result snippets.
func (p *Pipeline) searchExecutives(ctx context.Context, subject *model.Subject) ([]model.Executive, error) {
	query := fmt.Sprintf("%q %s CEO OR founder OR president", subject.Name, subject.Location())

	searchCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.ProviderTimeout())
	start := time.Now()
	searchResp, err := p.jina.Search(searchCtx, query, jina.WithResultCount(5))
	cancel()

	var snippets strings.Builder
	if searchResp != nil {
		for _, r := range searchResp.Data {
			snippet := r.Content
			if snippet == "" {
				snippet = r.Description
			}
			fmt.Fprintf(&snippets, "Title: %s\nURL: %s\n%s\n\n", r.Title, r.URL, snippet)
		}
	}
	p.audit(ctx, subject.ID, "executives", "jina", query, snippets.String(), err, time.Since(start))
	if err != nil {
		return nil, eris.Wrap(err, "executives: web search")
	}
	if strings.TrimSpace(snippets.String()) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(structurePrompt, subject.Name, snippets.String())

	aiCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.ProviderTimeout())
	defer cancel()

	start = time.Now()
	aiResp, err := p.anthropic.CreateMessage(aiCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: 2048,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	p.audit(ctx, subject.ID, "executives", "anthropic", prompt, aiResp.Text(), err, time.Since(start))
	if err != nil {
		return nil, eris.Wrap(err, "executives: structure search results")
	}
	aiResp.Usage.LogCost(p.cfg.Anthropic.Model, "executives")

	sourceURL := ""
	if len(searchResp.Data) > 0 {
		sourceURL = searchResp.Data[0].URL
	}

	var parsed []execCandidate
	if !extract.Unmarshal(aiResp.Text(), &parsed) {
		return nil, eris.New("executives: unparseable structuring")
	}
	return toExecutives(parsed, model.SourceLinkedIn, sourceURL), nil
}

// toExecutives converts parsed candidates to model rows with confidence
// scored from the evidence each one carries.
func toExecutives(parsed []execCandidate, source model.ExecutiveSource, sourceURL string) []model.Executive {
	execs := make([]model.Executive, 0, len(parsed))
	for _, c := range parsed {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		execs = append(execs, model.Executive{
			Name:       name,
			Position:   strings.TrimSpace(c.Position),
			ProfileURL: strings.TrimSpace(c.ProfileURL),
			Summary:    strings.TrimSpace(c.Summary),
			Confidence: scoreExecutive(c.ProfileURL, sourceURL),
			Source:     source,
		})
	}
	return execs
}
