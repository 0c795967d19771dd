package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
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

// The partial unique index on jobs closes the race window between checking
// for a running job and inserting a new one.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS cases (
	id                  TEXT PRIMARY KEY,
	source_type         TEXT NOT NULL,
	reference           TEXT NOT NULL,
	heading             TEXT NOT NULL DEFAULT '',
	date                DATE NOT NULL,
	applicant_name      TEXT NOT NULL DEFAULT '',
	applicant_type      TEXT NOT NULL DEFAULT 'unknown',
	respondent_name     TEXT NOT NULL DEFAULT '',
	respondent_type     TEXT NOT NULL DEFAULT 'unknown',
	documents           JSONB,
	raw_html            TEXT NOT NULL DEFAULT '',
	summary             TEXT NOT NULL DEFAULT '',
	outcome             TEXT NOT NULL DEFAULT '',
	compensation_amount DOUBLE PRECISION,
	cost_amount         DOUBLE PRECISION,
	property_address    TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL DEFAULT '',
	ai_processed_at     TIMESTAMPTZ,
	ai_error            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_type, reference)
);

CREATE INDEX IF NOT EXISTS idx_cases_unprocessed ON cases(created_at) WHERE ai_processed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_cases_date ON cases(date);

CREATE TABLE IF NOT EXISTS parties (
	id                  TEXT PRIMARY KEY,
	display_name        TEXT NOT NULL,
	normalized_name     TEXT NOT NULL UNIQUE,
	party_type          TEXT NOT NULL DEFAULT 'unknown',
	total_cases         INTEGER NOT NULL DEFAULT 0,
	cases_as_applicant  INTEGER NOT NULL DEFAULT 0,
	cases_as_respondent INTEGER NOT NULL DEFAULT 0,
	enforcement_cases   INTEGER NOT NULL DEFAULT 0,
	awarded_for         DOUBLE PRECISION NOT NULL DEFAULT 0,
	awarded_against     DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS case_parties (
	id         TEXT PRIMARY KEY,
	case_id    TEXT NOT NULL REFERENCES cases(id),
	party_id   TEXT NOT NULL REFERENCES parties(id),
	role       TEXT NOT NULL,
	party_type TEXT NOT NULL DEFAULT 'unknown',
	UNIQUE (case_id, party_id, role)
);

CREATE INDEX IF NOT EXISTS idx_case_parties_party ON case_parties(party_id);

CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	source_type     TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'running',
	current_page    INTEGER NOT NULL DEFAULT 0,
	total_pages     INTEGER NOT NULL DEFAULT 0,
	records_seen    INTEGER NOT NULL DEFAULT 0,
	records_created INTEGER NOT NULL DEFAULT 0,
	records_updated INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at     TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_single_running ON jobs(source_type) WHERE status = 'running';
CREATE INDEX IF NOT EXISTS idx_jobs_source_started ON jobs(source_type, started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Cases ---

const caseColumns = `id, source_type, reference, heading, date,
	applicant_name, applicant_type, respondent_name, respondent_type,
	documents, raw_html, summary, outcome, compensation_amount, cost_amount,
	property_address, category, ai_processed_at, ai_error, created_at, updated_at`

func (s *PostgresStore) UpsertCase(ctx context.Context, c *model.CaseRecord) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	docsJSON, err := json.Marshal(c.Documents)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal documents")
	}

	var id string
	var inserted bool
	err = s.pool.QueryRow(ctx,
		`INSERT INTO cases (id, source_type, reference, heading, date,
			applicant_name, applicant_type, respondent_name, respondent_type,
			documents, raw_html, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 ON CONFLICT (source_type, reference) DO UPDATE SET
			heading = EXCLUDED.heading,
			date = EXCLUDED.date,
			applicant_name = EXCLUDED.applicant_name,
			applicant_type = EXCLUDED.applicant_type,
			respondent_name = EXCLUDED.respondent_name,
			respondent_type = EXCLUDED.respondent_type,
			documents = EXCLUDED.documents,
			raw_html = EXCLUDED.raw_html,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, (xmax = 0) AS inserted`,
		c.ID, string(c.SourceType), c.Reference, c.Heading, c.Date,
		c.ApplicantName, string(c.ApplicantType), c.RespondentName, string(c.RespondentType),
		docsJSON, c.RawHTML, now,
	).Scan(&id, &inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert case %s", c.Reference)
	}

	c.ID = id
	c.UpdatedAt = now
	return inserted, nil
}

func (s *PostgresStore) scanCase(row pgx.Row) (*model.CaseRecord, error) {
	var c model.CaseRecord
	var docsJSON []byte
	if err := row.Scan(
		&c.ID, &c.SourceType, &c.Reference, &c.Heading, &c.Date,
		&c.ApplicantName, &c.ApplicantType, &c.RespondentName, &c.RespondentType,
		&docsJSON, &c.RawHTML, &c.Summary, &c.Outcome, &c.CompensationAmount, &c.CostAmount,
		&c.PropertyAddress, &c.Category, &c.AIProcessedAt, &c.AIError, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(docsJSON) > 0 {
		if err := json.Unmarshal(docsJSON, &c.Documents); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal documents")
		}
	}
	return &c, nil
}

func (s *PostgresStore) GetCase(ctx context.Context, id string) (*model.CaseRecord, error) {
	c, err := s.scanCase(s.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get case %s", id)
	}
	return c, nil
}

func (s *PostgresStore) GetCaseByReference(ctx context.Context, source model.SourceType, reference string) (*model.CaseRecord, error) {
	c, err := s.scanCase(s.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE source_type = $1 AND reference = $2`,
		string(source), reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get case by reference %s", reference)
	}
	return c, nil
}

func (s *PostgresStore) ListUnprocessedCases(ctx context.Context, limit int) ([]model.CaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM cases
		 WHERE ai_processed_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed cases")
	}
	defer rows.Close()

	var cases []model.CaseRecord
	for rows.Next() {
		c, err := s.scanCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		cases = append(cases, *c)
	}
	return cases, eris.Wrap(rows.Err(), "postgres: list unprocessed iterate")
}

func (s *PostgresStore) UpdateCaseEnrichment(ctx context.Context, caseID string, upd EnrichmentUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET
			summary = $1, outcome = $2, compensation_amount = $3, cost_amount = $4,
			property_address = $5, category = $6, ai_processed_at = $7, ai_error = $8,
			updated_at = $7
		 WHERE id = $9`,
		upd.Summary, string(upd.Outcome), upd.CompensationAmount, upd.CostAmount,
		upd.PropertyAddress, upd.Category, upd.ProcessedAt.UTC(), upd.Error, caseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update case enrichment %s", caseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "case %s", caseID)
	}
	return nil
}

// --- Parties ---

const partyColumns = `id, display_name, normalized_name, party_type,
	total_cases, cases_as_applicant, cases_as_respondent, enforcement_cases,
	awarded_for, awarded_against, created_at, updated_at`

func (s *PostgresStore) CreateParty(ctx context.Context, p *model.Party) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO parties (id, display_name, normalized_name, party_type, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		p.ID, p.DisplayName, p.NormalizedName, string(p.Type), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "party %s", p.NormalizedName)
		}
		return eris.Wrapf(err, "postgres: create party %s", p.NormalizedName)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) scanParty(row pgx.Row) (*model.Party, error) {
	var p model.Party
	if err := row.Scan(
		&p.ID, &p.DisplayName, &p.NormalizedName, &p.Type,
		&p.TotalCases, &p.CasesAsApplicant, &p.CasesAsRespondent, &p.EnforcementCases,
		&p.AwardedFor, &p.AwardedAgainst, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error) {
	p, err := s.scanParty(s.pool.QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE normalized_name = $1`, normalized))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get party by name %s", normalized)
	}
	return p, nil
}

func (s *PostgresStore) GetParty(ctx context.Context, id string) (*model.Party, error) {
	p, err := s.scanParty(s.pool.QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get party %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListParties(ctx context.Context) ([]model.Party, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+partyColumns+` FROM parties ORDER BY normalized_name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list parties")
	}
	defer rows.Close()

	var parties []model.Party
	for rows.Next() {
		p, err := s.scanParty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan party")
		}
		parties = append(parties, *p)
	}
	return parties, eris.Wrap(rows.Err(), "postgres: list parties iterate")
}

func (s *PostgresStore) UpdatePartyAggregates(ctx context.Context, partyID string, agg PartyAggregates) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE parties SET
			total_cases = $1, cases_as_applicant = $2, cases_as_respondent = $3,
			enforcement_cases = $4, awarded_for = $5, awarded_against = $6, updated_at = $7
		 WHERE id = $8`,
		agg.TotalCases, agg.CasesAsApplicant, agg.CasesAsRespondent,
		agg.EnforcementCases, agg.AwardedFor, agg.AwardedAgainst, time.Now().UTC(), partyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update party aggregates %s", partyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "party %s", partyID)
	}
	return nil
}

func (s *PostgresStore) DeleteParty(ctx context.Context, partyID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM parties WHERE id = $1`, partyID)
	return eris.Wrapf(err, "postgres: delete party %s", partyID)
}

// --- Case-party links ---

func (s *PostgresStore) CreateCaseParty(ctx context.Context, cp *model.CaseParty) error {
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO case_parties (id, case_id, party_id, role, party_type)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (case_id, party_id, role) DO NOTHING`,
		cp.ID, cp.CaseID, cp.PartyID, string(cp.Role), string(cp.PartyType),
	)
	return eris.Wrap(err, "postgres: create case party")
}

func (s *PostgresStore) ListPartyCaseLinks(ctx context.Context, partyID string) ([]PartyCaseLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cp.id, cp.case_id, cp.party_id, cp.role,
			c.source_type, c.reference, c.date, c.compensation_amount,
			c.ai_processed_at IS NOT NULL
		 FROM case_parties cp
		 JOIN cases c ON c.id = cp.case_id
		 WHERE cp.party_id = $1
		 ORDER BY c.date ASC`, partyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list case links for party %s", partyID)
	}
	defer rows.Close()

	var links []PartyCaseLink
	for rows.Next() {
		var l PartyCaseLink
		if err := rows.Scan(&l.LinkID, &l.CaseID, &l.PartyID, &l.Role,
			&l.SourceType, &l.Reference, &l.Date, &l.CompensationAmount, &l.Processed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan case link")
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "postgres: list case links iterate")
}

func (s *PostgresStore) RepointCaseParty(ctx context.Context, linkID, newPartyID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE case_parties SET party_id = $1 WHERE id = $2`, newPartyID, linkID)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "case party link %s", linkID)
		}
		return eris.Wrapf(err, "postgres: repoint case party %s", linkID)
	}
	return nil
}

func (s *PostgresStore) DeleteCaseParty(ctx context.Context, linkID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM case_parties WHERE id = $1`, linkID)
	return eris.Wrapf(err, "postgres: delete case party %s", linkID)
}

// --- Jobs ---

const jobColumns = `id, source_type, status, current_page, total_pages,
	records_seen, records_created, records_updated, error, started_at, finished_at`

func (s *PostgresStore) CreateJob(ctx context.Context, source model.SourceType) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, source_type, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(source), string(model.JobStatusRunning), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, eris.Wrapf(ErrJobRunning, "source %s", source)
		}
		return nil, eris.Wrapf(err, "postgres: insert job for %s", source)
	}

	return &model.Job{
		ID:         id,
		SourceType: source,
		Status:     model.JobStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *PostgresStore) scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(
		&j.ID, &j.SourceType, &j.Status, &j.CurrentPage, &j.TotalPages,
		&j.RecordsSeen, &j.RecordsCreated, &j.RecordsUpdated, &j.Error,
		&j.StartedAt, &j.FinishedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := s.scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

func (s *PostgresStore) GetJobStatus(ctx context.Context, id string) (model.JobStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", eris.Wrapf(ErrNotFound, "job %s", id)
		}
		return "", eris.Wrapf(err, "postgres: get job status %s", id)
	}
	return model.JobStatus(status), nil
}

func (s *PostgresStore) GetRunningJob(ctx context.Context, source model.SourceType) (*model.Job, error) {
	j, err := s.scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_type = $1 AND status = 'running'`,
		string(source)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get running job for %s", source)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SourceType != "" {
		query += fmt.Sprintf(` AND source_type = $%d`, argIdx)
		args = append(args, string(filter.SourceType))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := s.scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

// UpdateJobProgress writes a checkpoint. The status guard means progress is
// never written for a job that was cancelled or finished in the meantime;
// callers get ErrNotFound and should re-read the status.
func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id string, progress model.JobProgress) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET current_page = $1, total_pages = $2,
			records_seen = $3, records_created = $4, records_updated = $5
		 WHERE id = $6 AND status = 'running'`,
		progress.CurrentPage, progress.TotalPages,
		progress.RecordsSeen, progress.RecordsCreated, progress.RecordsUpdated, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job progress %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "running job %s", id)
	}
	return nil
}

func (s *PostgresStore) FinishJob(ctx context.Context, id string, status model.JobStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, finished_at = $3 WHERE id = $4 AND status = 'running'`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "running job %s", id)
	}
	return nil
}

func (s *PostgresStore) CancelJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, finished_at = $2 WHERE id = $3 AND status = 'running'`,
		string(model.JobStatusCancelled), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: cancel job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "running job %s", id)
	}
	return nil
}
