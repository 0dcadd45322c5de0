package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/fetcher"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

func newsArticleHTML(title, published string) string {
	return fmt.Sprintf(`<html><head>
		<title>%s</title>
		<meta property="article:published_time" content="%s" />
	</head><body>Acme Corp of Springfield announced the news today.</body></html>`,
		title, published)
}

func TestNewsStage_VerifiesWhitelistedCandidates(t *testing.T) {
	p, deps := newTestPipeline()

	recent := time.Now().AddDate(0, -1, 0).UTC().Format(time.RFC3339)
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{Content: "coverage summary"}}},
			SearchResults: []perplexity.SearchResult{
				{Title: "Acme Raises $40M", URL: "https://reuters.com/acme-raises", Date: recent},
				{Title: "Acme on a blog", URL: "https://random-blog.example/acme"},
			},
		}, nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	deps.fetch.On("Get", mock.Anything, "https://reuters.com/acme-raises").
		Return(&fetcher.Page{
			URL:        "https://reuters.com/acme-raises",
			StatusCode: 200,
			Body:       newsArticleHTML("Acme Raises $40M", recent),
		}, nil)

	items, err := p.newsStage(context.Background(), testSubject())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Acme Raises $40M", item.Title)
	assert.Equal(t, "https://reuters.com/acme-raises", item.URL)
	assert.Equal(t, model.ConfidenceHigh, item.Confidence)

	// The unlisted domain is never even fetched.
	deps.fetch.AssertNotCalled(t, "Get", mock.Anything, "https://random-blog.example/acme")
}

func TestNewsStage_SubjectOwnSiteNotWhitelisted(t *testing.T) {
	p, deps := newTestPipeline()

	recent := time.Now().AddDate(0, -1, 0).UTC().Format(time.RFC3339)
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{Content: "coverage summary"}}},
			SearchResults: []perplexity.SearchResult{
				{Title: "Acme Announces Expansion", URL: "https://acme.example/press/expansion", Date: recent},
			},
		}, nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	items, err := p.newsStage(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Empty(t, items)

	// The subject's own press page is unlisted coverage and never fetched.
	deps.fetch.AssertNotCalled(t, "Get", mock.Anything, "https://acme.example/press/expansion")
}

func TestNewsStage_FetchFailureDiscardsWithoutRetry(t *testing.T) {
	p, deps := newTestPipeline()

	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{Content: "x"}}},
			SearchResults: []perplexity.SearchResult{
				{Title: "Down article", URL: "https://reuters.com/down"},
				{Title: "Gone article", URL: "https://cnbc.com/gone"},
			},
		}, nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	deps.fetch.On("Get", mock.Anything, "https://reuters.com/down").
		Return(nil, eris.New("timeout")).Once()
	deps.fetch.On("Get", mock.Anything, "https://cnbc.com/gone").
		Return(&fetcher.Page{StatusCode: 404, Body: "not found"}, nil).Once()

	items, err := p.newsStage(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Empty(t, items)
	deps.fetch.AssertExpectations(t)
}

func TestNewsStage_DateWindow(t *testing.T) {
	p, deps := newTestPipeline()

	old := time.Now().AddDate(0, -12, 0).UTC().Format(time.RFC3339)
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{Content: "x"}}},
			SearchResults: []perplexity.SearchResult{
				{Title: "Stale news", URL: "https://reuters.com/stale"},
			},
		}, nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	deps.fetch.On("Get", mock.Anything, "https://reuters.com/stale").
		Return(&fetcher.Page{
			StatusCode: 200,
			Body:       newsArticleHTML("Stale news", old),
		}, nil)

	items, err := p.newsStage(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNewsStage_UndatedPageIncluded(t *testing.T) {
	p, deps := newTestPipeline()

	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{Content: "x"}}},
			SearchResults: []perplexity.SearchResult{
				{Title: "Undated", URL: "https://reuters.com/undated"},
			},
		}, nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	deps.fetch.On("Get", mock.Anything, "https://reuters.com/undated").
		Return(&fetcher.Page{
			StatusCode: 200,
			Body: `<html><head><title>Acme expands</title></head>` +
				`<body>Acme Corp grew again.</body></html>`,
		}, nil)

	items, err := p.newsStage(context.Background(), testSubject())
	require.NoError(t, err)
	require.Len(t, items, 1)
	// No publish date anywhere defaults to now, which is inside any window.
	assert.WithinDuration(t, time.Now(), items[0].PublishedAt, time.Minute)
	assert.Equal(t, model.ConfidenceMedium, items[0].Confidence)
}

func TestNewsStage_IrrelevantContentRejected(t *testing.T) {
	p, deps := newTestPipeline()

	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{
			Choices: []perplexity.Choice{{Message: perplexity.Message{Content: "x"}}},
			SearchResults: []perplexity.SearchResult{
				{Title: "Other company", URL: "https://reuters.com/other"},
			},
		}, nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	deps.fetch.On("Get", mock.Anything, "https://reuters.com/other").
		Return(&fetcher.Page{
			StatusCode: 200,
			Body: `<html><head><title>Somebody else</title></head>` +
				`<body>A completely different business did things.</body></html>`,
		}, nil)

	items, err := p.newsStage(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNewsStage_ProviderFailure(t *testing.T) {
	p, deps := newTestPipeline()

	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, eris.New("pplx down"))
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	items, err := p.newsStage(context.Background(), testSubject())
	require.Error(t, err)
	assert.Empty(t, items)
}

func TestNewsCandidates_PreferenceOrder(t *testing.T) {
	resp := &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{
			Content: "See https://prose.example/only for details.",
		}}},
		Citations: []string{"https://cite.example/1"},
		SearchResults: []perplexity.SearchResult{
			{Title: "T", URL: "https://structured.example/1", Date: "2026-01-01"},
			{Title: "Dup", URL: "https://cite.example/1"},
		},
	}

	cands := newsCandidates(resp, 10)
	require.Len(t, cands, 2)
	assert.Equal(t, "https://structured.example/1", cands[0].URL)
	assert.Equal(t, "T", cands[0].Title)
	assert.Equal(t, "https://cite.example/1", cands[1].URL)

	// Prose extraction only kicks in when the structured fields are empty.
	proseOnly := &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{
			Content: "Coverage at https://prose.example/only today.",
		}}},
	}
	cands = newsCandidates(proseOnly, 10)
	require.Len(t, cands, 1)
	assert.Equal(t, "https://prose.example/only", cands[0].URL)
}

func TestNewsCandidates_CapsAtMax(t *testing.T) {
	resp := &perplexity.ChatCompletionResponse{}
	for i := 0; i < 20; i++ {
		resp.SearchResults = append(resp.SearchResults, perplexity.SearchResult{
			URL: fmt.Sprintf("https://reuters.com/item-%d", i),
		})
	}
	assert.Len(t, newsCandidates(resp, 10), 10)
}

func TestNewsRelevant(t *testing.T) {
	subject := testSubject()
	assert.True(t, newsRelevant("https://reuters.com/acme-corp-expands", "", subject))
	assert.True(t, newsRelevant("https://reuters.com/x", "story about acme corp today", subject))
	assert.True(t, newsRelevant("https://reuters.com/x", "see acme.example for details", subject))
	assert.False(t, newsRelevant("https://reuters.com/x", "unrelated story", subject))
}

func TestSubjectNameTokens(t *testing.T) {
	assert.Equal(t, []string{"acme"}, subjectNameTokens("Acme Corp"))
	assert.Equal(t, []string{"johnson", "controls"}, subjectNameTokens("The Johnson & Controls Company, Inc."))
}
