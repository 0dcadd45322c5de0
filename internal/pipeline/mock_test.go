package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/dossier-cli/internal/fetcher"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/jina"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// --- Perplexity Mock ---

type mockPerplexityClient struct {
	mock.Mock
}

func (m *mockPerplexityClient) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Jina Mock ---

type mockJinaClient struct {
	mock.Mock
}

func (m *mockJinaClient) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

func (m *mockJinaClient) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Get(ctx context.Context, rawURL string) (*fetcher.Page, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetcher.Page), args.Error(1)
}

func (m *mockFetcher) Head(ctx context.Context, rawURL string) (int, error) {
	args := m.Called(ctx, rawURL)
	return args.Int(0), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *mockStore) LoadSubject(ctx context.Context, id string) (*model.Subject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *mockStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Subject), args.Error(1)
}

func (m *mockStore) GetRecord(ctx context.Context, subjectID string) (*model.Record, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Record), args.Error(1)
}

func (m *mockStore) UpdateRecord(ctx context.Context, subjectID string, fields map[string]any) error {
	args := m.Called(ctx, subjectID, fields)
	return args.Error(0)
}

func (m *mockStore) SetStatus(ctx context.Context, subjectID string, status model.RecordStatus, errMsg string) error {
	args := m.Called(ctx, subjectID, status, errMsg)
	return args.Error(0)
}

func (m *mockStore) ReplaceAutomatedExecutives(ctx context.Context, subjectID string, execs []model.Executive) error {
	args := m.Called(ctx, subjectID, execs)
	return args.Error(0)
}

func (m *mockStore) InsertUserExecutive(ctx context.Context, subjectID string, exec model.Executive) error {
	args := m.Called(ctx, subjectID, exec)
	return args.Error(0)
}

func (m *mockStore) ListExecutives(ctx context.Context, subjectID string) ([]model.Executive, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Executive), args.Error(1)
}

func (m *mockStore) ReplaceNews(ctx context.Context, subjectID string, items []model.NewsItem) error {
	args := m.Called(ctx, subjectID, items)
	return args.Error(0)
}

func (m *mockStore) ListNews(ctx context.Context, subjectID string) ([]model.NewsItem, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.NewsItem), args.Error(1)
}

func (m *mockStore) LogProviderCall(ctx context.Context, call model.ProviderCall) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *mockStore) ListProviderCalls(ctx context.Context, subjectID string) ([]model.ProviderCall, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProviderCall), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ perplexity.Client = (*mockPerplexityClient)(nil)
	_ anthropic.Client  = (*mockAnthropicClient)(nil)
	_ jina.Client       = (*mockJinaClient)(nil)
	_ fetcher.Fetcher   = (*mockFetcher)(nil)
	_ store.Store       = (*mockStore)(nil)
)
