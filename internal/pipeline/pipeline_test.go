package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// TestEnrich_DegradedStagesStillProcess drives a full run where the
// background succeeds with citations but every later provider call fails
// or returns junk. The record must still end processed, with the
// background persisted and the profile persisted as the Unknown stub.
func TestEnrich_DegradedStagesStillProcess(t *testing.T) {
	p, deps := newTestPipeline()
	subject := testSubject()
	subject.CEOName = ""
	subject.CEOProfile = ""

	deps.store.On("LoadSubject", mock.Anything, "sub-1").Return(subject, nil)
	deps.store.On("SetStatus", mock.Anything, "sub-1", model.RecordStatusProcessing, "").Return(nil).Once()
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)

	// Site context: homepage and subpages all unreachable.
	deps.fetch.On("Get", mock.Anything, mock.Anything).Return(nil, eris.New("unreachable"))

	// Background succeeds with two citations.
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return containsPrompt(req, "Write a thorough background")
	})).Return(pplxResponse("Acme Corp is a Springfield widget maker.",
		"https://reuters.com/acme", "https://acme.example/about"), nil)

	// Profile structuring returns prose with no JSON.
	deps.anthropic.On("CreateMessage", mock.Anything, mock.Anything).
		Return(aiResponse("Sorry, I cannot help with that."), nil)

	// Competitive and news calls fail outright.
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return containsPrompt(req, "competitors")
	})).Return(nil, eris.New("pplx down"))
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return containsPrompt(req, "leadership team")
	})).Return(nil, eris.New("pplx down"))
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return containsPrompt(req, "recent news")
	})).Return(nil, eris.New("pplx down"))
	deps.jina.On("Search", mock.Anything, mock.Anything).Return(nil, eris.New("jina down"))

	persisted := map[string]any{}
	deps.store.On("UpdateRecord", mock.Anything, "sub-1", mock.Anything).
		Run(func(args mock.Arguments) {
			for k, v := range args.Get(2).(map[string]any) {
				persisted[k] = v
			}
		}).Return(nil)
	deps.store.On("ReplaceAutomatedExecutives", mock.Anything, "sub-1", mock.Anything).Return(nil)
	deps.store.On("ReplaceNews", mock.Anything, "sub-1", mock.Anything).Return(nil)
	deps.store.On("SetStatus", mock.Anything, "sub-1", model.RecordStatusProcessed, "").Return(nil).Once()

	summary, err := p.Enrich(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, model.RecordStatusProcessed, summary.Status)
	assert.Equal(t, 2, summary.Citations)
	assert.Zero(t, summary.Competitors)
	assert.Zero(t, summary.Executives)
	assert.Zero(t, summary.News)

	assert.Equal(t, "Acme Corp is a Springfield widget maker.", persisted["background"])
	assert.Equal(t, []string{"https://reuters.com/acme", "https://acme.example/about"}, persisted["citations"])
	profile, ok := persisted["profile"].(*model.Profile)
	require.True(t, ok)
	assert.Equal(t, model.UnknownValue, profile.Overview)

	deps.store.AssertExpectations(t)
}

func TestEnrich_UserProvidedCEOInserted(t *testing.T) {
	p, deps := newTestPipeline()
	subject := testSubject()

	deps.store.On("LoadSubject", mock.Anything, "sub-1").Return(subject, nil)
	deps.store.On("SetStatus", mock.Anything, "sub-1", mock.Anything, "").Return(nil)
	deps.store.On("LogProviderCall", mock.Anything, mock.Anything).Return(nil)
	deps.store.On("UpdateRecord", mock.Anything, "sub-1", mock.Anything).Return(nil)
	deps.store.On("ReplaceAutomatedExecutives", mock.Anything, "sub-1", mock.Anything).Return(nil)
	deps.store.On("ReplaceNews", mock.Anything, "sub-1", mock.Anything).Return(nil)

	deps.fetch.On("Get", mock.Anything, mock.Anything).Return(nil, eris.New("unreachable"))
	deps.fetch.On("Head", mock.Anything, subject.CEOProfile).Return(200, nil)
	deps.perplexity.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, eris.New("down"))
	deps.anthropic.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("down")).Maybe()
	deps.jina.On("Search", mock.Anything, mock.Anything).Return(nil, eris.New("down"))

	var userExec model.Executive
	deps.store.On("InsertUserExecutive", mock.Anything, "sub-1", mock.Anything).
		Run(func(args mock.Arguments) {
			userExec = args.Get(2).(model.Executive)
		}).Return(nil)

	summary, err := p.Enrich(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Executives)
	assert.Equal(t, "Jane Doe", userExec.Name)
	assert.True(t, userExec.UserProvided)
	assert.Equal(t, model.SourceUser, userExec.Source)
	assert.Equal(t, model.ConfidenceHigh, userExec.Confidence)
}

func TestEnrich_MissingSubjectIsFatal(t *testing.T) {
	p, deps := newTestPipeline()

	deps.store.On("LoadSubject", mock.Anything, "missing").
		Return(nil, eris.New("subject not found"))

	summary, err := p.Enrich(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, summary)
	deps.store.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrich_StatusWriteFailureIsFatal(t *testing.T) {
	p, deps := newTestPipeline()

	deps.store.On("LoadSubject", mock.Anything, "sub-1").Return(testSubject(), nil)
	deps.store.On("SetStatus", mock.Anything, "sub-1", model.RecordStatusProcessing, "").
		Return(eris.New("db gone"))

	summary, err := p.Enrich(context.Background(), "sub-1")
	require.Error(t, err)
	assert.Nil(t, summary)
}

func TestMarkFailed(t *testing.T) {
	p, deps := newTestPipeline()
	deps.store.On("SetStatus", mock.Anything, "sub-1", model.RecordStatusError, "boom").Return(nil)

	p.MarkFailed(context.Background(), "sub-1", eris.New("boom"))
	deps.store.AssertExpectations(t)
}

func containsPrompt(req perplexity.ChatCompletionRequest, needle string) bool {
	for _, m := range req.Messages {
		if strings.Contains(m.Content, needle) {
			return true
		}
	}
	return false
}
