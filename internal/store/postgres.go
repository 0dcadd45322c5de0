package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/db"
	"github.com/sells-group/dossier-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	website_url     TEXT NOT NULL,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	country         TEXT NOT NULL DEFAULT '',
	ceo_name        TEXT NOT NULL DEFAULT '',
	ceo_profile_url TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS records (
	subject_id  TEXT PRIMARY KEY REFERENCES subjects(id),
	status      TEXT NOT NULL DEFAULT 'new',
	background  TEXT NOT NULL DEFAULT '',
	citations   JSONB,
	profile     JSONB,
	competitors JSONB,
	acquirers   JSONB,
	error       TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
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
	user_provided BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS news_items (
	id           TEXT PRIMARY KEY,
	subject_id   TEXT NOT NULL REFERENCES subjects(id),
	title        TEXT NOT NULL,
	url          TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ NOT NULL,
	confidence   TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	duration_ms BIGINT NOT NULL DEFAULT 0,
	called_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_executives_subject ON executives(subject_id);
CREATE INDEX IF NOT EXISTS idx_news_items_subject ON news_items(subject_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_subject ON provider_calls(subject_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_stage ON provider_calls(subject_id, stage);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error) {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	subject.CreatedAt = time.Now().UTC()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO subjects (id, name, website_url, city, state, country, ceo_name, ceo_profile_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		subject.ID, subject.Name, subject.WebsiteURL, subject.City, subject.State,
		subject.Country, subject.CEOName, subject.CEOProfile, subject.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert subject")
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO records (subject_id, status, updated_at) VALUES ($1, $2, $3)`,
		subject.ID, model.RecordStatusNew, subject.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert record")
	}

	return &subject, nil
}

func (s *PostgresStore) LoadSubject(ctx context.Context, id string) (*model.Subject, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, website_url, city, state, country, ceo_name, ceo_profile_url, created_at
		 FROM subjects WHERE id = $1`, id)

	var sub model.Subject
	err := row.Scan(&sub.ID, &sub.Name, &sub.WebsiteURL, &sub.City, &sub.State,
		&sub.Country, &sub.CEOName, &sub.CEOProfile, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: subject not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load subject")
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, website_url, city, state, country, ceo_name, ceo_profile_url, created_at
		 FROM subjects ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subjects")
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.WebsiteURL, &sub.City, &sub.State,
			&sub.Country, &sub.CEOName, &sub.CEOProfile, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s *PostgresStore) GetRecord(ctx context.Context, subjectID string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT subject_id, status, background, citations, profile, competitors, acquirers, error, updated_at
		 FROM records WHERE subject_id = $1`, subjectID)

	var rec model.Record
	var citations, profile, competitors, acquirers []byte
	err := row.Scan(&rec.SubjectID, &rec.Status, &rec.Background, &citations,
		&profile, &competitors, &acquirers, &rec.Error, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: record not found: %s", subjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get record")
	}

	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &rec.Citations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal citations")
		}
	}
	if len(profile) > 0 {
		rec.Profile = &model.Profile{}
		if err := json.Unmarshal(profile, rec.Profile); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal profile")
		}
	}
	if len(competitors) > 0 {
		if err := json.Unmarshal(competitors, &rec.Competitors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal competitors")
		}
	}
	if len(acquirers) > 0 {
		if err := json.Unmarshal(acquirers, &rec.Acquirers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal acquirers")
		}
	}
	return &rec, nil
}

// recordFieldValue converts a whitelisted field value to its column
// representation. JSON columns are marshaled; background stays text.
func recordFieldValue(field string, value any) (any, error) {
	if field == "background" {
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal record field %s", field)
	}
	return data, nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, subjectID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := RecordFields[name]; !ok {
			return eris.Errorf("postgres: unknown record field: %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for i, name := range names {
		val, err := recordFieldValue(name, fields[name])
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", name, i+1))
		args = append(args, val)
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(names)+1))
	args = append(args, time.Now().UTC())
	args = append(args, subjectID)

	query := fmt.Sprintf("UPDATE records SET %s WHERE subject_id = $%d",
		strings.Join(sets, ", "), len(names)+2)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrap(err, "postgres: update record")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record not found: %s", subjectID)
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, subjectID string, status model.RecordStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET status = $1, error = $2, updated_at = $3 WHERE subject_id = $4`,
		status, errMsg, time.Now().UTC(), subjectID)
	if err != nil {
		return eris.Wrap(err, "postgres: set status")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record not found: %s", subjectID)
	}
	return nil
}

func (s *PostgresStore) ReplaceAutomatedExecutives(ctx context.Context, subjectID string, execs []model.Executive) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace executives")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM executives WHERE subject_id = $1 AND user_provided = false`, subjectID); err != nil {
		return eris.Wrap(err, "postgres: delete automated executives")
	}

	for _, exec := range execs {
		if exec.UserProvided {
			// Replace is scoped to automated rows only.
			continue
		}
		id := exec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO executives (id, subject_id, name, position, profile_url, summary, confidence, source, user_provided)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`,
			id, subjectID, exec.Name, exec.Position, exec.ProfileURL, exec.Summary,
			exec.Confidence, exec.Source,
		); err != nil {
			return eris.Wrap(err, "postgres: insert executive")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit replace executives")
	}
	return nil
}

func (s *PostgresStore) InsertUserExecutive(ctx context.Context, subjectID string, exec model.Executive) error {
	id := exec.ID
	if id == "" {
		id = uuid.NewString()
	}
	// One user-provided row per subject: re-asserting the CEO replaces the
	// previous user row, never the automated ones.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert user executive")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM executives WHERE subject_id = $1 AND user_provided = true`, subjectID); err != nil {
		return eris.Wrap(err, "postgres: delete prior user executive")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO executives (id, subject_id, name, position, profile_url, summary, confidence, source, user_provided)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)`,
		id, subjectID, exec.Name, exec.Position, exec.ProfileURL, exec.Summary,
		exec.Confidence, exec.Source,
	); err != nil {
		return eris.Wrap(err, "postgres: insert user executive")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit insert user executive")
	}
	return nil
}

func (s *PostgresStore) ListExecutives(ctx context.Context, subjectID string) ([]model.Executive, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, position, profile_url, summary, confidence, source, user_provided
		 FROM executives WHERE subject_id = $1 ORDER BY user_provided DESC, name`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list executives")
	}
	defer rows.Close()

	var execs []model.Executive
	for rows.Next() {
		var e model.Executive
		if err := rows.Scan(&e.ID, &e.Name, &e.Position, &e.ProfileURL, &e.Summary,
			&e.Confidence, &e.Source, &e.UserProvided); err != nil {
			return nil, eris.Wrap(err, "postgres: scan executive")
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func (s *PostgresStore) ReplaceNews(ctx context.Context, subjectID string, items []model.NewsItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace news")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM news_items WHERE subject_id = $1`, subjectID); err != nil {
		return eris.Wrap(err, "postgres: delete news")
	}

	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO news_items (id, subject_id, title, url, summary, published_at, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, subjectID, item.Title, item.URL, item.Summary, item.PublishedAt, item.Confidence,
		); err != nil {
			return eris.Wrap(err, "postgres: insert news item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit replace news")
	}
	return nil
}

func (s *PostgresStore) ListNews(ctx context.Context, subjectID string) ([]model.NewsItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, url, summary, published_at, confidence
		 FROM news_items WHERE subject_id = $1 ORDER BY published_at DESC`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list news")
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		var item model.NewsItem
		if err := rows.Scan(&item.ID, &item.Title, &item.URL, &item.Summary,
			&item.PublishedAt, &item.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan news item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) LogProviderCall(ctx context.Context, call model.ProviderCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CalledAt.IsZero() {
		call.CalledAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO provider_calls (id, subject_id, stage, provider, request, response, status, error, duration_ms, called_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		call.ID, call.SubjectID, call.Stage, call.Provider, call.Request, call.Response,
		call.Status, call.Error, call.DurationMS, call.CalledAt,
	); err != nil {
		return eris.Wrap(err, "postgres: log provider call")
	}
	return nil
}

func (s *PostgresStore) ListProviderCalls(ctx context.Context, subjectID string) ([]model.ProviderCall, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, stage, provider, request, response, status, error, duration_ms, called_at
		 FROM provider_calls WHERE subject_id = $1 ORDER BY called_at`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provider calls")
	}
	defer rows.Close()

	var calls []model.ProviderCall
	for rows.Next() {
		var c model.ProviderCall
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Stage, &c.Provider, &c.Request,
			&c.Response, &c.Status, &c.Error, &c.DurationMS, &c.CalledAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider call")
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
