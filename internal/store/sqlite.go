package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dossier-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-machine runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	website_url     TEXT NOT NULL,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	country         TEXT NOT NULL DEFAULT '',
	ceo_name        TEXT NOT NULL DEFAULT '',
	ceo_profile_url TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
	subject_id  TEXT PRIMARY KEY REFERENCES subjects(id),
	status      TEXT NOT NULL DEFAULT 'new',
	background  TEXT NOT NULL DEFAULT '',
	citations   TEXT,
	profile     TEXT,
	competitors TEXT,
	acquirers   TEXT,
	error       TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS executives (
	id            TEXT PRIMARY KEY,
	subject_id    TEXT NOT NULL REFERENCES subjects(id),
	name          TEXT NOT NULL,
	position      TEXT NOT NULL DEFAULT '',
	profile_url   TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	confidence    TEXT NOT NULL,
	source        TEXT NOT NULL,
	user_provided INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS news_items (
	id           TEXT PRIMARY KEY,
	subject_id   TEXT NOT NULL REFERENCES subjects(id),
	title        TEXT NOT NULL,
	url          TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	published_at DATETIME NOT NULL,
	confidence   TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	stage       TEXT NOT NULL,
	provider    TEXT NOT NULL,
	request     TEXT NOT NULL,
	response    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	called_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_executives_subject ON executives(subject_id);
CREATE INDEX IF NOT EXISTS idx_news_items_subject ON news_items(subject_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_subject ON provider_calls(subject_id);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error) {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	subject.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin create subject")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO subjects (id, name, website_url, city, state, country, ceo_name, ceo_profile_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subject.ID, subject.Name, subject.WebsiteURL, subject.City, subject.State,
		subject.Country, subject.CEOName, subject.CEOProfile, subject.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert subject")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (subject_id, status, updated_at) VALUES (?, ?, ?)`,
		subject.ID, model.RecordStatusNew, subject.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert record")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit create subject")
	}
	return &subject, nil
}

func (s *SQLiteStore) LoadSubject(ctx context.Context, id string) (*model.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website_url, city, state, country, ceo_name, ceo_profile_url, created_at
		 FROM subjects WHERE id = ?`, id)

	var sub model.Subject
	err := row.Scan(&sub.ID, &sub.Name, &sub.WebsiteURL, &sub.City, &sub.State,
		&sub.Country, &sub.CEOName, &sub.CEOProfile, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: subject not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load subject")
	}
	return &sub, nil
}

func (s *SQLiteStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website_url, city, state, country, ceo_name, ceo_profile_url, created_at
		 FROM subjects ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subjects")
	}
	defer rows.Close() //nolint:errcheck

	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.WebsiteURL, &sub.City, &sub.State,
			&sub.Country, &sub.CEOName, &sub.CEOProfile, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s *SQLiteStore) GetRecord(ctx context.Context, subjectID string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT subject_id, status, background, citations, profile, competitors, acquirers, error, updated_at
		 FROM records WHERE subject_id = ?`, subjectID)

	var rec model.Record
	var citations, profile, competitors, acquirers sql.NullString
	err := row.Scan(&rec.SubjectID, &rec.Status, &rec.Background, &citations,
		&profile, &competitors, &acquirers, &rec.Error, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: record not found: %s", subjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get record")
	}

	if citations.Valid && citations.String != "" {
		if err := json.Unmarshal([]byte(citations.String), &rec.Citations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal citations")
		}
	}
	if profile.Valid && profile.String != "" {
		rec.Profile = &model.Profile{}
		if err := json.Unmarshal([]byte(profile.String), rec.Profile); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal profile")
		}
	}
	if competitors.Valid && competitors.String != "" {
		if err := json.Unmarshal([]byte(competitors.String), &rec.Competitors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal competitors")
		}
	}
	if acquirers.Valid && acquirers.String != "" {
		if err := json.Unmarshal([]byte(acquirers.String), &rec.Acquirers); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal acquirers")
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, subjectID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := RecordFields[name]; !ok {
			return eris.Errorf("sqlite: unknown record field: %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		val, err := recordFieldValue(name, fields[name])
		if err != nil {
			return err
		}
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		sets = append(sets, fmt.Sprintf("%s = ?", name))
		args = append(args, val)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, subjectID)

	query := fmt.Sprintf("UPDATE records SET %s WHERE subject_id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrap(err, "sqlite: update record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: record not found: %s", subjectID)
	}
	return nil
}

func (s *SQLiteStore) SetStatus(ctx context.Context, subjectID string, status model.RecordStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, error = ?, updated_at = ? WHERE subject_id = ?`,
		status, errMsg, time.Now().UTC(), subjectID)
	if err != nil {
		return eris.Wrap(err, "sqlite: set status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: record not found: %s", subjectID)
	}
	return nil
}

func (s *SQLiteStore) ReplaceAutomatedExecutives(ctx context.Context, subjectID string, execs []model.Executive) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace executives")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM executives WHERE subject_id = ? AND user_provided = 0`, subjectID); err != nil {
		return eris.Wrap(err, "sqlite: delete automated executives")
	}

	for _, exec := range execs {
		if exec.UserProvided {
			continue
		}
		id := exec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO executives (id, subject_id, name, position, profile_url, summary, confidence, source, user_provided)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			id, subjectID, exec.Name, exec.Position, exec.ProfileURL, exec.Summary,
			exec.Confidence, exec.Source,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert executive")
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit replace executives")
	}
	return nil
}

func (s *SQLiteStore) InsertUserExecutive(ctx context.Context, subjectID string, exec model.Executive) error {
	id := exec.ID
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert user executive")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM executives WHERE subject_id = ? AND user_provided = 1`, subjectID); err != nil {
		return eris.Wrap(err, "sqlite: delete prior user executive")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO executives (id, subject_id, name, position, profile_url, summary, confidence, source, user_provided)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		id, subjectID, exec.Name, exec.Position, exec.ProfileURL, exec.Summary,
		exec.Confidence, exec.Source,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert user executive")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit insert user executive")
	}
	return nil
}

func (s *SQLiteStore) ListExecutives(ctx context.Context, subjectID string) ([]model.Executive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, position, profile_url, summary, confidence, source, user_provided
		 FROM executives WHERE subject_id = ? ORDER BY user_provided DESC, name`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list executives")
	}
	defer rows.Close() //nolint:errcheck

	var execs []model.Executive
	for rows.Next() {
		var e model.Executive
		if err := rows.Scan(&e.ID, &e.Name, &e.Position, &e.ProfileURL, &e.Summary,
			&e.Confidence, &e.Source, &e.UserProvided); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan executive")
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func (s *SQLiteStore) ReplaceNews(ctx context.Context, subjectID string, items []model.NewsItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace news")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM news_items WHERE subject_id = ?`, subjectID); err != nil {
		return eris.Wrap(err, "sqlite: delete news")
	}

	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO news_items (id, subject_id, title, url, summary, published_at, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, subjectID, item.Title, item.URL, item.Summary, item.PublishedAt, item.Confidence,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert news item")
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit replace news")
	}
	return nil
}

func (s *SQLiteStore) ListNews(ctx context.Context, subjectID string) ([]model.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, url, summary, published_at, confidence
		 FROM news_items WHERE subject_id = ? ORDER BY published_at DESC`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list news")
	}
	defer rows.Close() //nolint:errcheck

	var items []model.NewsItem
	for rows.Next() {
		var item model.NewsItem
		if err := rows.Scan(&item.ID, &item.Title, &item.URL, &item.Summary,
			&item.PublishedAt, &item.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan news item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) LogProviderCall(ctx context.Context, call model.ProviderCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CalledAt.IsZero() {
		call.CalledAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_calls (id, subject_id, stage, provider, request, response, status, error, duration_ms, called_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.SubjectID, call.Stage, call.Provider, call.Request, call.Response,
		call.Status, call.Error, call.DurationMS, call.CalledAt,
	); err != nil {
		return eris.Wrap(err, "sqlite: log provider call")
	}
	return nil
}

func (s *SQLiteStore) ListProviderCalls(ctx context.Context, subjectID string) ([]model.ProviderCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, stage, provider, request, response, status, error, duration_ms, called_at
		 FROM provider_calls WHERE subject_id = ? ORDER BY called_at`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provider calls")
	}
	defer rows.Close() //nolint:errcheck

	var calls []model.ProviderCall
	for rows.Next() {
		var c model.ProviderCall
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Stage, &c.Provider, &c.Request,
			&c.Response, &c.Status, &c.Error, &c.DurationMS, &c.CalledAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider call")
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
