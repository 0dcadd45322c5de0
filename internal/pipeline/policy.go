package pipeline

import (
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SourcePolicy controls which news sources are trusted and which pages are
// rejected regardless of relevance. The domain whitelist is absolute: a
// candidate on an unlisted domain is dropped before anything else is
// checked.
type SourcePolicy struct {
	Domains              []string `yaml:"domains"`
	ExcludePhrases       []string `yaml:"exclude_phrases"`
	ExcludeTitlePatterns []string `yaml:"exclude_title_patterns"`

	titleRes []*regexp.Regexp
}

// defaultNewsDomains are outlets trusted for company news out of the box.
var defaultNewsDomains = []string{
	"reuters.com",
	"bloomberg.com",
	"wsj.com",
	"ft.com",
	"cnbc.com",
	"forbes.com",
	"fortune.com",
	"axios.com",
	"techcrunch.com",
	"businesswire.com",
	"prnewswire.com",
	"globenewswire.com",
	"finance.yahoo.com",
	"bizjournals.com",
	"inc.com",
	"fastcompany.com",
	"crunchbase.com",
}

// defaultExcludePhrases mark pages that are not articles: paywalls, bot
// checks, and error pages that come back with a 200.
var defaultExcludePhrases = []string{
	"subscribe to continue reading",
	"sign in to read",
	"enable javascript and cookies",
	"verify you are a human",
	"page not found",
}

var defaultExcludeTitlePatterns = []string{
	`(?i)^access denied`,
	`(?i)^just a moment`,
	`(?i)^attention required`,
	`(?i)^\s*404\b`,
}

// DefaultSourcePolicy returns the built-in policy tables.
func DefaultSourcePolicy() *SourcePolicy {
	p := &SourcePolicy{
		Domains:              defaultNewsDomains,
		ExcludePhrases:       defaultExcludePhrases,
		ExcludeTitlePatterns: defaultExcludeTitlePatterns,
	}
	p.compile()
	return p
}

// LoadSourcePolicy reads a policy from a yaml file. Omitted sections fall
// back to the defaults, so a file can override just the domain list.
func LoadSourcePolicy(path string) (*SourcePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "policy: read file")
	}
	var p SourcePolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "policy: parse yaml")
	}
	if len(p.Domains) == 0 {
		p.Domains = defaultNewsDomains
	}
	if len(p.ExcludePhrases) == 0 {
		p.ExcludePhrases = defaultExcludePhrases
	}
	if len(p.ExcludeTitlePatterns) == 0 {
		p.ExcludeTitlePatterns = defaultExcludeTitlePatterns
	}
	p.compile()
	return &p, nil
}

func (p *SourcePolicy) compile() {
	p.titleRes = p.titleRes[:0]
	for _, pattern := range p.ExcludeTitlePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		p.titleRes = append(p.titleRes, re)
	}
}

// AllowsDomain reports whether the candidate URL's host is on the
// whitelist. Subdomains of a listed domain are allowed; any unlisted host
// is rejected regardless of content.
func (p *SourcePolicy) AllowsDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	for _, domain := range p.Domains {
		if hostMatches(host, domain) {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// ExcludesTitle reports whether the page title matches a rejection pattern.
func (p *SourcePolicy) ExcludesTitle(title string) bool {
	for _, re := range p.titleRes {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// ExcludesContent reports whether the page body contains a phrase that
// marks it as a non-article.
func (p *SourcePolicy) ExcludesContent(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range p.ExcludePhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
