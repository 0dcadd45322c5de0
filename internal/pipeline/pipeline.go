package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/fetcher"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/jina"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// Pipeline orchestrates the dossier enrichment stages for a single subject.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	perplexity perplexity.Client
	anthropic  anthropic.Client
	jina       jina.Client
	fetch      fetcher.Fetcher
	newsPolicy *SourcePolicy
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	pplxClient perplexity.Client,
	aiClient anthropic.Client,
	jinaClient jina.Client,
	fetch fetcher.Fetcher,
	newsPolicy *SourcePolicy,
) *Pipeline {
	if newsPolicy == nil {
		newsPolicy = DefaultSourcePolicy()
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		perplexity: pplxClient,
		anthropic:  aiClient,
		jina:       jinaClient,
		fetch:      fetch,
		newsPolicy: newsPolicy,
	}
}

// Enrich runs the full enrichment pipeline for one subject. Individual
// stages degrade to empty results on provider failure; only subject load
// and status writes are fatal. The record therefore ends in status
// processed even when some sections stayed empty.
func (p *Pipeline) Enrich(ctx context.Context, subjectID string) (*model.EnrichSummary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("subject_id", subjectID))

	subject, err := p.store.LoadSubject(ctx, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load subject")
	}
	log = log.With(zap.String("subject", subject.Name))
	log.Info("pipeline: starting enrichment")

	if err := p.store.SetStatus(ctx, subjectID, model.RecordStatusProcessing, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status processing")
	}

	summary := &model.EnrichSummary{SubjectID: subjectID}

	runStage := func(name string, fn func() error) {
		stageStart := time.Now()
		stageErr := fn()
		dur := time.Since(stageStart).Milliseconds()
		if stageErr != nil {
			log.Warn("pipeline: stage degraded",
				zap.String("stage", name),
				zap.Int64("duration_ms", dur),
				zap.Error(stageErr),
			)
			return
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", dur),
		)
	}

	persist := func(fields map[string]any) {
		if err := p.store.UpdateRecord(ctx, subjectID, fields); err != nil {
			log.Warn("pipeline: persist failed", zap.Error(err))
		}
	}

	var siteContext string
	runStage("site_context", func() error {
		siteContext = p.siteContext(ctx, subject.WebsiteURL)
		return nil
	})

	var background BackgroundResult
	runStage("background", func() error {
		bg, bgErr := p.backgroundStage(ctx, subject)
		if bg != nil {
			background = *bg
			summary.Citations = len(bg.Citations)
			persist(map[string]any{
				"background": bg.Background,
				"citations":  bg.Citations,
			})
		}
		return bgErr
	})

	runStage("profile", func() error {
		profile, profErr := p.profileStage(ctx, subject, background.Background, siteContext)
		persist(map[string]any{"profile": profile})
		return profErr
	})

	runStage("competitive", func() error {
		comp, compErr := p.competitiveStage(ctx, subject)
		if comp != nil {
			summary.Competitors = len(comp.Competitors)
			summary.Acquirers = len(comp.Acquirers)
			persist(map[string]any{
				"competitors": comp.Competitors,
				"acquirers":   comp.Acquirers,
			})
		}
		return compErr
	})

	runStage("executives", func() error {
		execs, execErr := p.executivesStage(ctx, subject)
		if replaceErr := p.store.ReplaceAutomatedExecutives(ctx, subjectID, execs); replaceErr != nil {
			log.Warn("pipeline: replace executives failed", zap.Error(replaceErr))
		}
		summary.Executives = len(execs)
		if subject.CEOName != "" {
			userExec := p.userExecutive(ctx, subject)
			if insErr := p.store.InsertUserExecutive(ctx, subjectID, userExec); insErr != nil {
				log.Warn("pipeline: insert user executive failed", zap.Error(insErr))
			} else {
				summary.Executives++
			}
		}
		return execErr
	})

	runStage("news", func() error {
		items, newsErr := p.newsStage(ctx, subject)
		if replaceErr := p.store.ReplaceNews(ctx, subjectID, items); replaceErr != nil {
			log.Warn("pipeline: replace news failed", zap.Error(replaceErr))
		}
		summary.News = len(items)
		return newsErr
	})

	if err := p.store.SetStatus(ctx, subjectID, model.RecordStatusProcessed, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status processed")
	}
	summary.Status = model.RecordStatusProcessed
	summary.DurationMS = time.Since(start).Milliseconds()

	log.Info("pipeline: enrichment complete",
		zap.Int("citations", summary.Citations),
		zap.Int("competitors", summary.Competitors),
		zap.Int("acquirers", summary.Acquirers),
		zap.Int("executives", summary.Executives),
		zap.Int("news", summary.News),
		zap.Int64("duration_ms", summary.DurationMS),
	)

	return summary, nil
}

// MarkFailed transitions the record to status error with a message. Used by
// callers when enrichment aborts on a fatal error.
func (p *Pipeline) MarkFailed(ctx context.Context, subjectID string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := p.store.SetStatus(ctx, subjectID, model.RecordStatusError, msg); err != nil {
		zap.L().Warn("pipeline: set status error failed",
			zap.String("subject_id", subjectID), zap.Error(err))
	}
}
