package pipeline

import (
	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// testDeps bundles the mocks behind a Pipeline for stage tests.
type testDeps struct {
	store      *mockStore
	perplexity *mockPerplexityClient
	anthropic  *mockAnthropicClient
	jina       *mockJinaClient
	fetch      *mockFetcher
}

func newTestPipeline() (*Pipeline, *testDeps) {
	deps := &testDeps{
		store:      &mockStore{},
		perplexity: &mockPerplexityClient{},
		anthropic:  &mockAnthropicClient{},
		jina:       &mockJinaClient{},
		fetch:      &mockFetcher{},
	}
	cfg := &config.Config{
		Perplexity: config.PerplexityConfig{Model: "sonar-pro"},
		Anthropic:  config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
		Enrich: config.EnrichConfig{
			ProviderTimeoutSecs: 30,
			FetchTimeoutSecs:    5,
			SiteContextMaxChars: 20000,
		},
		News: config.NewsConfig{
			WindowMonths:     6,
			MaxCandidates:    10,
			FetchConcurrency: 5,
		},
	}
	p := New(cfg, deps.store, deps.perplexity, deps.anthropic, deps.jina, deps.fetch, nil)
	return p, deps
}

func testSubject() *model.Subject {
	return &model.Subject{
		ID:         "sub-1",
		Name:       "Acme Corp",
		WebsiteURL: "https://acme.example",
		City:       "Springfield",
		State:      "IL",
		CEOName:    "Jane Doe",
		CEOProfile: "https://linkedin.com/in/janedoe",
	}
}

func pplxResponse(content string, citations ...string) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{
			{Message: perplexity.Message{Role: "assistant", Content: content}},
		},
		Citations: citations,
	}
}

func aiResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}
