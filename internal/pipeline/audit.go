package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
)

// audit records one provider request/response pair in the call log. It runs
// before any parsing of the response, so the raw evidence survives a parse
// failure. A failed audit write is logged and swallowed; it never blocks
// the stage.
func (p *Pipeline) audit(ctx context.Context, subjectID, stage, provider, request, response string, callErr error, dur time.Duration) {
	call := model.ProviderCall{
		SubjectID:  subjectID,
		Stage:      stage,
		Provider:   provider,
		Request:    request,
		Response:   response,
		Status:     model.CallStatusOK,
		DurationMS: dur.Milliseconds(),
		CalledAt:   time.Now().UTC(),
	}
	if callErr != nil {
		call.Status = model.CallStatusFailed
		call.Error = callErr.Error()
	}
	if err := p.store.LogProviderCall(ctx, call); err != nil {
		zap.L().Warn("pipeline: provider call audit failed",
			zap.String("subject_id", subjectID),
			zap.String("stage", stage),
			zap.String("provider", provider),
			zap.Error(err),
		)
	}
}
