package pipeline

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// newsPage is the metadata scanned out of a fetched article.
type newsPage struct {
	Title       string
	Description string
	Published   time.Time
}

// Deliberately regex over raw HTML rather than a DOM parse: news pages are
// scanned by the thousand and only four fields matter.
var (
	htmlTitleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	ogTitleRe    = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)
	metaDescRe   = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]+content=["']([^"']+)["']`)
	publishedRe  = regexp.MustCompile(`(?is)<meta[^>]+property=["']article:published_time["'][^>]+content=["']([^"']+)["']`)
	datetimeRe   = regexp.MustCompile(`(?is)datetime=["']([^"']+)["']`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// scanNewsPage pulls title, description, and publish date from raw HTML.
// Missing fields stay zero; the caller decides what a missing date means.
func scanNewsPage(body string) newsPage {
	var page newsPage

	if m := ogTitleRe.FindStringSubmatch(body); m != nil {
		page.Title = cleanMetaText(m[1])
	} else if m := htmlTitleRe.FindStringSubmatch(body); m != nil {
		page.Title = cleanMetaText(m[1])
	}
	if m := metaDescRe.FindStringSubmatch(body); m != nil {
		page.Description = cleanMetaText(m[1])
	}
	if m := publishedRe.FindStringSubmatch(body); m != nil {
		page.Published, _ = parseNewsDate(m[1])
	}
	if page.Published.IsZero() {
		if m := datetimeRe.FindStringSubmatch(body); m != nil {
			page.Published, _ = parseNewsDate(m[1])
		}
	}
	return page
}

func cleanMetaText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(html.UnescapeString(s), " "))
}

// newsDateLayouts are tried in order against provider dates and page
// metadata.
var newsDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

// parseNewsDate parses a date string in any of the accepted layouts.
func parseNewsDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range newsDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
