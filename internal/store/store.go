// Package store persists subjects, dossier records, and the provider audit
// log. The pipeline consumes only the Store interface and assumes nothing
// about the backing engine beyond per-call atomicity.
package store

import (
	"context"

	"github.com/sells-group/dossier-cli/internal/model"
)

// RecordFields is the whitelisted set of record columns a stage may update.
// Keys outside this set are rejected by UpdateRecord.
var RecordFields = map[string]struct{}{
	"background":  {},
	"citations":   {},
	"profile":     {},
	"competitors": {},
	"acquirers":   {},
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Subjects
	CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error)
	LoadSubject(ctx context.Context, id string) (*model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)

	// Dossier record
	GetRecord(ctx context.Context, subjectID string) (*model.Record, error)
	UpdateRecord(ctx context.Context, subjectID string, fields map[string]any) error
	SetStatus(ctx context.Context, subjectID string, status model.RecordStatus, errMsg string) error

	// Executives. Replace deletes and re-inserts only automatically
	// discovered rows; user-provided rows are never touched by it.
	ReplaceAutomatedExecutives(ctx context.Context, subjectID string, execs []model.Executive) error
	InsertUserExecutive(ctx context.Context, subjectID string, exec model.Executive) error
	ListExecutives(ctx context.Context, subjectID string) ([]model.Executive, error)

	// News
	ReplaceNews(ctx context.Context, subjectID string, items []model.NewsItem) error
	ListNews(ctx context.Context, subjectID string) ([]model.NewsItem, error)

	// Audit log: every provider request/response pair, verbatim,
	// regardless of parse success.
	LogProviderCall(ctx context.Context, call model.ProviderCall) error
	ListProviderCalls(ctx context.Context, subjectID string) ([]model.ProviderCall, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
