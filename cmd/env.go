package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/fetcher"
	"github.com/sells-group/dossier-cli/internal/pipeline"
	"github.com/sells-group/dossier-cli/internal/store"
	anthropicpkg "github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/jina"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// pipelineEnv bundles the store and pipeline a command needs, with one
// Close for teardown.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model))
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithBaseURL(cfg.Jina.BaseURL),
		jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))

	fetch := fetcher.New(fetcher.Options{
		UserAgent: "dossier-cli/1.0",
		Timeout:   cfg.Enrich.FetchTimeout(),
	})

	policy := pipeline.DefaultSourcePolicy()
	if cfg.News.PolicyFile != "" {
		policy, err = pipeline.LoadSourcePolicy(cfg.News.PolicyFile)
		if err != nil {
			st.Close()
			return nil, eris.Wrap(err, "load news source policy")
		}
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, perplexityClient, anthropicClient, jinaClient, fetch, policy),
	}, nil
}
