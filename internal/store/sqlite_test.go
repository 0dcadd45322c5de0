package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedSubject(t *testing.T, st *SQLiteStore) *model.Subject {
	t.Helper()
	sub, err := st.CreateSubject(context.Background(), model.Subject{
		Name:       "Acme Corp",
		WebsiteURL: "https://acme.example",
		City:       "Springfield",
		State:      "IL",
		CEOName:    "Jane Doe",
	})
	require.NoError(t, err)
	return sub
}

func TestSQLiteSubjectRoundTrip(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	require.NotEmpty(t, sub.ID)

	loaded, err := st.LoadSubject(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", loaded.Name)
	assert.Equal(t, "Springfield, IL", loaded.Location())

	// Record row created alongside, status new.
	rec, err := st.GetRecord(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusNew, rec.Status)

	subjects, err := st.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
}

func TestSQLiteLoadSubject_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.LoadSubject(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteUpdateRecord(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	ctx := context.Background()

	err := st.UpdateRecord(ctx, sub.ID, map[string]any{
		"background": "Acme makes widgets.",
		"citations":  []string{"https://acme.example/about"},
		"profile":    model.UnknownProfile(),
	})
	require.NoError(t, err)

	err = st.UpdateRecord(ctx, sub.ID, map[string]any{
		"competitors": []model.CompetitiveEntity{
			{Name: "Globex", Kind: model.KindCompetitor, Sources: []string{"https://a.example", "https://b.example"}},
		},
	})
	require.NoError(t, err)

	rec, err := st.GetRecord(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme makes widgets.", rec.Background)
	assert.Equal(t, []string{"https://acme.example/about"}, rec.Citations)
	require.NotNil(t, rec.Profile)
	assert.Equal(t, model.UnknownValue, rec.Profile.Overview)
	require.Len(t, rec.Competitors, 1)
	assert.Equal(t, "Globex", rec.Competitors[0].Name)
}

func TestSQLiteUpdateRecord_RejectsUnknownField(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)

	err := st.UpdateRecord(context.Background(), sub.ID, map[string]any{"status": "processed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown record field")
}

func TestSQLiteSetStatus(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	ctx := context.Background()

	require.NoError(t, st.SetStatus(ctx, sub.ID, model.RecordStatusProcessing, ""))
	require.NoError(t, st.SetStatus(ctx, sub.ID, model.RecordStatusError, "provider credential missing"))

	rec, err := st.GetRecord(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusError, rec.Status)
	assert.Equal(t, "provider credential missing", rec.Error)

	err = st.SetStatus(ctx, "missing", model.RecordStatusProcessed, "")
	assert.Error(t, err)
}

func TestSQLiteExecutiveReplaceCycle(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	ctx := context.Background()

	// User-provided CEO inserted once.
	require.NoError(t, st.InsertUserExecutive(ctx, sub.ID, model.Executive{
		Name:       "Jane Doe",
		Position:   "CEO",
		Confidence: model.ConfidenceHigh,
		Source:     model.SourceUser,
	}))

	// First automated run discovers two executives.
	require.NoError(t, st.ReplaceAutomatedExecutives(ctx, sub.ID, []model.Executive{
		{Name: "John Smith", Position: "CTO", Confidence: model.ConfidenceMedium, Source: model.SourceProviderText},
		{Name: "Mary Major", Position: "CFO", Confidence: model.ConfidenceLow, Source: model.SourceProviderText},
	}))

	execs, err := st.ListExecutives(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, execs, 3)

	// Second run rediscovers only one; the stale automated row is removed,
	// the user-provided row survives.
	require.NoError(t, st.ReplaceAutomatedExecutives(ctx, sub.ID, []model.Executive{
		{Name: "John Smith", Position: "CTO", Confidence: model.ConfidenceHigh, Source: model.SourceMerged},
	}))

	execs, err = st.ListExecutives(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.True(t, execs[0].UserProvided)
	assert.Equal(t, "Jane Doe", execs[0].Name)
	assert.Equal(t, "John Smith", execs[1].Name)
	assert.Equal(t, model.ConfidenceHigh, execs[1].Confidence)
}

func TestSQLiteInsertUserExecutive_ReplacesPriorUserRow(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	ctx := context.Background()

	require.NoError(t, st.InsertUserExecutive(ctx, sub.ID, model.Executive{
		Name: "Jane Doe", Position: "CEO", Confidence: model.ConfidenceLow, Source: model.SourceUser,
	}))
	require.NoError(t, st.InsertUserExecutive(ctx, sub.ID, model.Executive{
		Name: "Jane Doe", Position: "CEO", Confidence: model.ConfidenceHigh, Source: model.SourceUser,
		ProfileURL: "https://linkedin.com/in/janedoe",
	}))

	execs, err := st.ListExecutives(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, model.ConfidenceHigh, execs[0].Confidence)
	assert.Equal(t, "https://linkedin.com/in/janedoe", execs[0].ProfileURL)
}

func TestSQLiteNewsReplace(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.ReplaceNews(ctx, sub.ID, []model.NewsItem{
		{Title: "Acme expands", URL: "https://news.example.com/1", PublishedAt: now, Confidence: model.ConfidenceHigh},
		{Title: "Acme hires", URL: "https://news.example.com/2", PublishedAt: now.Add(-time.Hour), Confidence: model.ConfidenceMedium},
	}))

	require.NoError(t, st.ReplaceNews(ctx, sub.ID, []model.NewsItem{
		{Title: "Acme acquired", URL: "https://news.example.com/3", PublishedAt: now, Confidence: model.ConfidenceHigh},
	}))

	items, err := st.ListNews(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme acquired", items[0].Title)
}

func TestSQLiteProviderCallLog(t *testing.T) {
	st := newTestStore(t)
	sub := seedSubject(t, st)
	ctx := context.Background()

	require.NoError(t, st.LogProviderCall(ctx, model.ProviderCall{
		SubjectID: sub.ID,
		Stage:     "background",
		Provider:  "perplexity",
		Request:   "tell me about Acme Corp",
		Response:  "Acme Corp makes widgets.",
		Status:    model.CallStatusOK,
	}))
	require.NoError(t, st.LogProviderCall(ctx, model.ProviderCall{
		SubjectID: sub.ID,
		Stage:     "profile",
		Provider:  "anthropic",
		Request:   "structure this",
		Status:    model.CallStatusFailed,
		Error:     "timeout",
	}))

	calls, err := st.ListProviderCalls(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "background", calls[0].Stage)
	// Failed calls are logged too, with their raw request preserved.
	assert.Equal(t, model.CallStatusFailed, calls[1].Status)
	assert.Equal(t, "structure this", calls[1].Request)
}
