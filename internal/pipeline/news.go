package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dossier-cli/internal/extract"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

const newsPrompt = `Find recent news coverage (last %d months) of the company "%s"%s
(website %s): funding, acquisitions, product launches, leadership changes,
expansions, awards, lawsuits. Cite the source URL for every item. Prefer
established news outlets and wire services.`

// newsCandidate is one URL to verify, with whatever the provider already
// told us about it.
type newsCandidate struct {
	Title string
	URL   string
	Date  string
}

// newsStage finds recent news mentions and verifies each candidate by
// actually fetching it. Verification order: domain whitelist first, then
// the fetch, then relevance and recency of the fetched page. The whitelist
// is checked before any network cost is spent.
func (p *Pipeline) newsStage(ctx context.Context, subject *model.Subject) ([]model.NewsItem, error) {
	location := ""
	if loc := subject.Location(); loc != "" {
		location = fmt.Sprintf(" located in %s", loc)
	}
	prompt := fmt.Sprintf(newsPrompt, p.cfg.News.WindowMonths, subject.Name, location, subject.WebsiteURL)

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
	p.audit(ctx, subject.ID, "news", "perplexity", prompt, resp.Text(), err, time.Since(start))
	if err != nil {
		return nil, eris.Wrap(err, "news: chat completion")
	}

	candidates := newsCandidates(resp, p.cfg.News.MaxCandidates)

	// The whitelist has no exception for the subject's own site: a
	// self-hosted press release is not independent coverage.
	allowed := make([]newsCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !p.newsPolicy.AllowsDomain(c.URL) {
			continue
		}
		if c.Title != "" && p.newsPolicy.ExcludesTitle(c.Title) {
			continue
		}
		allowed = append(allowed, c)
	}
	zap.L().Debug("news: candidates after whitelist",
		zap.String("subject", subject.Name),
		zap.Int("raw", len(candidates)),
		zap.Int("allowed", len(allowed)),
	)

	cutoff := time.Now().AddDate(0, -p.cfg.News.WindowMonths, 0)

	var mu sync.Mutex
	var items []model.NewsItem

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.News.FetchConcurrency)
	for _, cand := range allowed {
		g.Go(func() error {
			if item, ok := p.verifyNewsCandidate(gCtx, subject, cand, cutoff); ok {
				mu.Lock()
				items = append(items, item)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}

// verifyNewsCandidate fetches one candidate and applies the relevance,
// exclusion, and date-window checks. Any fetch failure discards the
// candidate; there is no retry.
func (p *Pipeline) verifyNewsCandidate(ctx context.Context, subject *model.Subject, cand newsCandidate, cutoff time.Time) (model.NewsItem, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.FetchTimeout())
	defer cancel()

	page, err := p.fetch.Get(fetchCtx, cand.URL)
	if err != nil || page.StatusCode < 200 || page.StatusCode >= 300 {
		return model.NewsItem{}, false
	}
	body := page.Body

	scanned := scanNewsPage(body)
	title := scanned.Title
	if title == "" {
		title = cand.Title
	}
	if title == "" || p.newsPolicy.ExcludesTitle(title) || p.newsPolicy.ExcludesContent(body) {
		return model.NewsItem{}, false
	}

	if !newsRelevant(cand.URL, body, subject) {
		return model.NewsItem{}, false
	}
	// Relevance can pass on the URL alone, but a page whose content never
	// names the subject is not a verified mention.
	confidence, ok := scoreNewsContent(body, subject)
	if !ok {
		return model.NewsItem{}, false
	}

	published := scanned.Published
	if published.IsZero() {
		published, _ = parseNewsDate(cand.Date)
	}
	if published.IsZero() {
		// Inclusion-leaning: an undated page counts as current.
		published = time.Now().UTC()
	}
	if published.Before(cutoff) {
		return model.NewsItem{}, false
	}

	return model.NewsItem{
		Title:       title,
		URL:         cand.URL,
		Summary:     scanned.Description,
		PublishedAt: published,
		Confidence:  confidence,
	}, true
}

// newsCandidates extracts candidate URLs from a completion, preferring the
// structured search results (which carry titles and dates), then the bare
// citation list, then URL extraction from the prose.
func newsCandidates(resp *perplexity.ChatCompletionResponse, max int) []newsCandidate {
	var out []newsCandidate
	seen := make(map[string]struct{})
	add := func(c newsCandidate) {
		if c.URL == "" || len(out) >= max {
			return
		}
		if _, ok := seen[c.URL]; ok {
			return
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}

	for _, sr := range resp.SearchResults {
		add(newsCandidate{Title: sr.Title, URL: sr.URL, Date: sr.Date})
	}
	for _, u := range resp.Citations {
		add(newsCandidate{URL: u})
	}
	if len(out) == 0 {
		for _, u := range extract.URLs(resp.Text()) {
			add(newsCandidate{URL: u})
		}
	}
	return out
}

// newsRelevant reports whether the page plausibly concerns the subject:
// a subject name token or the site domain must appear in the URL or in the
// fetched content.
func newsRelevant(rawURL, content string, subject *model.Subject) bool {
	lowerURL := strings.ToLower(rawURL)
	lowerContent := strings.ToLower(content)

	if domain := domainOf(subject.WebsiteURL); domain != "" {
		if strings.Contains(lowerURL, domain) || strings.Contains(lowerContent, domain) {
			return true
		}
	}
	for _, token := range subjectNameTokens(subject.Name) {
		if strings.Contains(lowerURL, token) || strings.Contains(lowerContent, token) {
			return true
		}
	}
	return false
}

// subjectNameTokens returns the distinctive lowercase tokens of a company
// name, dropping corporate suffixes and short stopwords.
func subjectNameTokens(name string) []string {
	skip := map[string]struct{}{
		"inc": {}, "llc": {}, "ltd": {}, "corp": {}, "co": {},
		"company": {}, "group": {}, "the": {}, "and": {}, "of": {},
	}
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(name)) {
		t = strings.Trim(t, ".,&")
		if len(t) < 3 {
			continue
		}
		if _, ok := skip[t]; ok {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}
