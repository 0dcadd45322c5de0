package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// siteContextPaths are fetched relative to the subject's website, homepage
// first. Paths that 404 or time out are simply skipped.
var siteContextPaths = []string{
	"",
	"/about",
	"/about-us",
	"/company",
	"/team",
	"/leadership",
}

// siteContext fetches the subject's own website and returns cleaned text
// for grounding the LLM stages. Every failure mode degrades to whatever
// was collected so far, down to the empty string.
func (p *Pipeline) siteContext(ctx context.Context, websiteURL string) string {
	if websiteURL == "" {
		return ""
	}
	base, err := url.Parse(websiteURL)
	if err != nil || base.Host == "" {
		zap.L().Debug("sitecontext: unusable website url", zap.String("url", websiteURL))
		return ""
	}

	maxChars := p.cfg.Enrich.SiteContextMaxChars
	perPage := maxChars / 4

	var b strings.Builder
	for _, path := range siteContextPaths {
		if b.Len() >= maxChars {
			break
		}
		target := base.ResolveReference(&url.URL{Path: path}).String()

		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Enrich.FetchTimeout())
		page, fetchErr := p.fetch.Get(fetchCtx, target)
		cancel()
		if fetchErr != nil || page.StatusCode < 200 || page.StatusCode >= 300 {
			continue
		}

		text := cleanHTML(page.Body)
		if text == "" {
			continue
		}
		if len(text) > perPage {
			text = text[:perPage]
		}
		b.WriteString("## ")
		b.WriteString(target)
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	out := b.String()
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return strings.TrimSpace(out)
}

// cleanHTML strips scripts, styles, and chrome from an HTML document and
// returns collapsed visible text. A parse failure returns the empty string;
// the caller treats the page as contributing nothing.
func cleanHTML(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, svg, iframe, nav, header, footer, form").Remove()

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	return collapseWhitespace(text)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
