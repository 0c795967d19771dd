package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tribunal-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs and
// development without a Postgres instance.
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cases (
	id                  TEXT PRIMARY KEY,
	source_type         TEXT NOT NULL,
	reference           TEXT NOT NULL,
	heading             TEXT NOT NULL DEFAULT '',
	date                TIMESTAMP NOT NULL,
	applicant_name      TEXT NOT NULL DEFAULT '',
	applicant_type      TEXT NOT NULL DEFAULT 'unknown',
	respondent_name     TEXT NOT NULL DEFAULT '',
	respondent_type     TEXT NOT NULL DEFAULT 'unknown',
	documents           TEXT,
	raw_html            TEXT NOT NULL DEFAULT '',
	summary             TEXT NOT NULL DEFAULT '',
	outcome             TEXT NOT NULL DEFAULT '',
	compensation_amount REAL,
	cost_amount         REAL,
	property_address    TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL DEFAULT '',
	ai_processed_at     TIMESTAMP,
	ai_error            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL,
	UNIQUE (source_type, reference)
);

CREATE TABLE IF NOT EXISTS parties (
	id                  TEXT PRIMARY KEY,
	display_name        TEXT NOT NULL,
	normalized_name     TEXT NOT NULL UNIQUE,
	party_type          TEXT NOT NULL DEFAULT 'unknown',
	total_cases         INTEGER NOT NULL DEFAULT 0,
	cases_as_applicant  INTEGER NOT NULL DEFAULT 0,
	cases_as_respondent INTEGER NOT NULL DEFAULT 0,
	enforcement_cases   INTEGER NOT NULL DEFAULT 0,
	awarded_for         REAL NOT NULL DEFAULT 0,
	awarded_against     REAL NOT NULL DEFAULT 0,
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL
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
	started_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_single_running ON jobs(source_type) WHERE status = 'running';
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Cases ---

func (s *SQLiteStore) UpsertCase(ctx context.Context, c *model.CaseRecord) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	docsJSON, err := json.Marshal(c.Documents)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal documents")
	}

	var existingID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM cases WHERE source_type = ? AND reference = ?`,
		string(c.SourceType), c.Reference,
	).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO cases (id, source_type, reference, heading, date,
				applicant_name, applicant_type, respondent_name, respondent_type,
				documents, raw_html, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, string(c.SourceType), c.Reference, c.Heading, c.Date,
			c.ApplicantName, string(c.ApplicantType), c.RespondentName, string(c.RespondentType),
			string(docsJSON), c.RawHTML, now, now,
		)
		if err != nil {
			if isSQLiteUniqueViolation(err) {
				// insert race: fall through to update below
				return s.UpsertCase(ctx, c)
			}
			return false, eris.Wrapf(err, "sqlite: insert case %s", c.Reference)
		}
		c.UpdatedAt = now
		return true, nil
	case err != nil:
		return false, eris.Wrapf(err, "sqlite: lookup case %s", c.Reference)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE cases SET heading = ?, date = ?,
			applicant_name = ?, applicant_type = ?, respondent_name = ?, respondent_type = ?,
			documents = ?, raw_html = ?, updated_at = ?
		 WHERE id = ?`,
		c.Heading, c.Date,
		c.ApplicantName, string(c.ApplicantType), c.RespondentName, string(c.RespondentType),
		string(docsJSON), c.RawHTML, now, existingID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update case %s", c.Reference)
	}
	c.ID = existingID
	c.UpdatedAt = now
	return false, nil
}

const sqliteCaseColumns = `id, source_type, reference, heading, date,
	applicant_name, applicant_type, respondent_name, respondent_type,
	documents, raw_html, summary, outcome, compensation_amount, cost_amount,
	property_address, category, ai_processed_at, ai_error, created_at, updated_at`

type sqliteRow interface {
	Scan(dest ...any) error
}

func scanSQLiteCase(row sqliteRow) (*model.CaseRecord, error) {
	var c model.CaseRecord
	var docsJSON sql.NullString
	var comp, cost sql.NullFloat64
	var processedAt sql.NullTime
	if err := row.Scan(
		&c.ID, &c.SourceType, &c.Reference, &c.Heading, &c.Date,
		&c.ApplicantName, &c.ApplicantType, &c.RespondentName, &c.RespondentType,
		&docsJSON, &c.RawHTML, &c.Summary, &c.Outcome, &comp, &cost,
		&c.PropertyAddress, &c.Category, &processedAt, &c.AIError, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if comp.Valid {
		c.CompensationAmount = &comp.Float64
	}
	if cost.Valid {
		c.CostAmount = &cost.Float64
	}
	if processedAt.Valid {
		t := processedAt.Time
		c.AIProcessedAt = &t
	}
	if docsJSON.Valid && docsJSON.String != "" && docsJSON.String != "null" {
		if err := json.Unmarshal([]byte(docsJSON.String), &c.Documents); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal documents")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) GetCase(ctx context.Context, id string) (*model.CaseRecord, error) {
	c, err := scanSQLiteCase(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCaseColumns+` FROM cases WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get case %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) GetCaseByReference(ctx context.Context, source model.SourceType, reference string) (*model.CaseRecord, error) {
	c, err := scanSQLiteCase(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCaseColumns+` FROM cases WHERE source_type = ? AND reference = ?`,
		string(source), reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get case by reference %s", reference)
	}
	return c, nil
}

func (s *SQLiteStore) ListUnprocessedCases(ctx context.Context, limit int) ([]model.CaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteCaseColumns+` FROM cases
		 WHERE ai_processed_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed cases")
	}
	defer rows.Close()

	var cases []model.CaseRecord
	for rows.Next() {
		c, err := scanSQLiteCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case")
		}
		cases = append(cases, *c)
	}
	return cases, eris.Wrap(rows.Err(), "sqlite: list unprocessed iterate")
}

func (s *SQLiteStore) UpdateCaseEnrichment(ctx context.Context, caseID string, upd EnrichmentUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET
			summary = ?, outcome = ?, compensation_amount = ?, cost_amount = ?,
			property_address = ?, category = ?, ai_processed_at = ?, ai_error = ?,
			updated_at = ?
		 WHERE id = ?`,
		upd.Summary, string(upd.Outcome), nullableFloat(upd.CompensationAmount), nullableFloat(upd.CostAmount),
		upd.PropertyAddress, upd.Category, upd.ProcessedAt.UTC(), upd.Error,
		upd.ProcessedAt.UTC(), caseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update case enrichment %s", caseID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "case %s", caseID)
	}
	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// --- Parties ---

const sqlitePartyColumns = `id, display_name, normalized_name, party_type,
	total_cases, cases_as_applicant, cases_as_respondent, enforcement_cases,
	awarded_for, awarded_against, created_at, updated_at`

func (s *SQLiteStore) CreateParty(ctx context.Context, p *model.Party) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parties (id, display_name, normalized_name, party_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, p.NormalizedName, string(p.Type), now, now,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "party %s", p.NormalizedName)
		}
		return eris.Wrapf(err, "sqlite: create party %s", p.NormalizedName)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func scanSQLiteParty(row sqliteRow) (*model.Party, error) {
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

func (s *SQLiteStore) GetPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error) {
	p, err := scanSQLiteParty(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePartyColumns+` FROM parties WHERE normalized_name = ?`, normalized))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get party by name %s", normalized)
	}
	return p, nil
}

func (s *SQLiteStore) GetParty(ctx context.Context, id string) (*model.Party, error) {
	p, err := scanSQLiteParty(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePartyColumns+` FROM parties WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get party %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListParties(ctx context.Context) ([]model.Party, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePartyColumns+` FROM parties ORDER BY normalized_name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list parties")
	}
	defer rows.Close()

	var parties []model.Party
	for rows.Next() {
		p, err := scanSQLiteParty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan party")
		}
		parties = append(parties, *p)
	}
	return parties, eris.Wrap(rows.Err(), "sqlite: list parties iterate")
}

func (s *SQLiteStore) UpdatePartyAggregates(ctx context.Context, partyID string, agg PartyAggregates) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE parties SET
			total_cases = ?, cases_as_applicant = ?, cases_as_respondent = ?,
			enforcement_cases = ?, awarded_for = ?, awarded_against = ?, updated_at = ?
		 WHERE id = ?`,
		agg.TotalCases, agg.CasesAsApplicant, agg.CasesAsRespondent,
		agg.EnforcementCases, agg.AwardedFor, agg.AwardedAgainst, time.Now().UTC(), partyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update party aggregates %s", partyID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "party %s", partyID)
	}
	return nil
}

func (s *SQLiteStore) DeleteParty(ctx context.Context, partyID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, partyID)
	return eris.Wrapf(err, "sqlite: delete party %s", partyID)
}

// --- Case-party links ---

func (s *SQLiteStore) CreateCaseParty(ctx context.Context, cp *model.CaseParty) error {
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO case_parties (id, case_id, party_id, role, party_type)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (case_id, party_id, role) DO NOTHING`,
		cp.ID, cp.CaseID, cp.PartyID, string(cp.Role), string(cp.PartyType),
	)
	return eris.Wrap(err, "sqlite: create case party")
}

func (s *SQLiteStore) ListPartyCaseLinks(ctx context.Context, partyID string) ([]PartyCaseLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cp.id, cp.case_id, cp.party_id, cp.role,
			c.source_type, c.reference, c.date, c.compensation_amount,
			c.ai_processed_at IS NOT NULL
		 FROM case_parties cp
		 JOIN cases c ON c.id = cp.case_id
		 WHERE cp.party_id = ?
		 ORDER BY c.date ASC`, partyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list case links for party %s", partyID)
	}
	defer rows.Close()

	var links []PartyCaseLink
	for rows.Next() {
		var l PartyCaseLink
		var comp sql.NullFloat64
		if err := rows.Scan(&l.LinkID, &l.CaseID, &l.PartyID, &l.Role,
			&l.SourceType, &l.Reference, &l.Date, &comp, &l.Processed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case link")
		}
		if comp.Valid {
			l.CompensationAmount = &comp.Float64
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: list case links iterate")
}

func (s *SQLiteStore) RepointCaseParty(ctx context.Context, linkID, newPartyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE case_parties SET party_id = ? WHERE id = ?`, newPartyID, linkID)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "case party link %s", linkID)
		}
		return eris.Wrapf(err, "sqlite: repoint case party %s", linkID)
	}
	return nil
}

func (s *SQLiteStore) DeleteCaseParty(ctx context.Context, linkID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM case_parties WHERE id = ?`, linkID)
	return eris.Wrapf(err, "sqlite: delete case party %s", linkID)
}

// --- Jobs ---

const sqliteJobColumns = `id, source_type, status, current_page, total_pages,
	records_seen, records_created, records_updated, error, started_at, finished_at`

func (s *SQLiteStore) CreateJob(ctx context.Context, source model.SourceType) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source_type, status, started_at) VALUES (?, ?, ?, ?)`,
		id, string(source), string(model.JobStatusRunning), now,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, eris.Wrapf(ErrJobRunning, "source %s", source)
		}
		return nil, eris.Wrapf(err, "sqlite: insert job for %s", source)
	}

	return &model.Job{
		ID:         id,
		SourceType: source,
		Status:     model.JobStatusRunning,
		StartedAt:  now,
	}, nil
}

func scanSQLiteJob(row sqliteRow) (*model.Job, error) {
	var j model.Job
	var finishedAt sql.NullTime
	if err := row.Scan(
		&j.ID, &j.SourceType, &j.Status, &j.CurrentPage, &j.TotalPages,
		&j.RecordsSeen, &j.RecordsCreated, &j.RecordsUpdated, &j.Error,
		&j.StartedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		j.FinishedAt = &t
	}
	return &j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanSQLiteJob(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteJobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) GetJobStatus(ctx context.Context, id string) (model.JobStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", eris.Wrapf(ErrNotFound, "job %s", id)
		}
		return "", eris.Wrapf(err, "sqlite: get job status %s", id)
	}
	return model.JobStatus(status), nil
}

func (s *SQLiteStore) GetRunningJob(ctx context.Context, source model.SourceType) (*model.Job, error) {
	j, err := scanSQLiteJob(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteJobColumns+` FROM jobs WHERE source_type = ? AND status = 'running'`,
		string(source)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get running job for %s", source)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + sqliteJobColumns + ` FROM jobs WHERE true`
	args := []any{}

	if filter.SourceType != "" {
		query += ` AND source_type = ?`
		args = append(args, string(filter.SourceType))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, id string, progress model.JobProgress) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET current_page = ?, total_pages = ?,
			records_seen = ?, records_created = ?, records_updated = ?
		 WHERE id = ? AND status = 'running'`,
		progress.CurrentPage, progress.TotalPages,
		progress.RecordsSeen, progress.RecordsCreated, progress.RecordsUpdated, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job progress %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "running job %s", id)
	}
	return nil
}

func (s *SQLiteStore) FinishJob(ctx context.Context, id string, status model.JobStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ? AND status = 'running'`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish job %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "running job %s", id)
	}
	return nil
}

func (s *SQLiteStore) CancelJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ? WHERE id = ? AND status = 'running'`,
		string(model.JobStatusCancelled), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: cancel job %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "running job %s", id)
	}
	return nil
}
