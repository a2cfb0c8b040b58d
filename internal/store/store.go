package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
    id TEXT PRIMARY KEY,
    source_type TEXT,
    title TEXT,
    authors TEXT,
    organization TEXT,
    date_published TEXT,
    url TEXT,
    signal_hits INTEGER,
    processed_at TEXT
);

CREATE TABLE IF NOT EXISTS open_problems (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    canonical_statement TEXT,
    domain TEXT,
    subdomain TEXT,
    scope TEXT,
    mention_count INTEGER DEFAULT 1,
    source_ids TEXT,
    related_keywords TEXT,
    original_text TEXT,
    notes TEXT,
    provenance TEXT,
    created_at TEXT
);

CREATE TABLE IF NOT EXISTS sub_questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    problem_id INTEGER REFERENCES open_problems(id),
    question TEXT,
    evidence_needed TEXT,
    disciplines TEXT,
    estimated_complexity TEXT,
    source_id TEXT REFERENCES sources(id)
);

CREATE TABLE IF NOT EXISTS run_problems (
    run_id TEXT,
    problem_id INTEGER REFERENCES open_problems(id),
    PRIMARY KEY (run_id, problem_id)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT,
    started_at TEXT,
    run_date TEXT,
    source_types TEXT,
    sources_ingested INTEGER,
    signal_passages INTEGER,
    problems_extracted INTEGER,
    problems_after_dedup INTEGER,
    sub_questions_extracted INTEGER,
    total_cost REAL,
    config TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_problems_run_id ON run_problems(run_id);
`

// Store is the SQLite-backed problem database. The pipeline core only relies
// on upsert-by-id and append-source-reference being individually atomic.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the problem database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSource inserts or replaces a source record.
func (s *Store) UpsertSource(src model.Source, signalHits int) error {
	authors, _ := json.Marshal(src.Authors)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sources
		 (id, source_type, title, authors, organization, date_published, url, signal_hits, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.SourceID, src.SourceType, src.Title, string(authors), src.Organization,
		src.DatePublished, src.URL, signalHits, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.SourceID, err)
	}
	return nil
}

// UpsertProblem inserts or merges a canonical problem. A problem with an ID
// updates its row in place. A problem without an ID is matched against an
// existing row by canonical statement first (so retrying a failed
// persistence pass is idempotent) and inserted otherwise; the assigned ID is
// written back into p.
func (s *Store) UpsertProblem(p *model.CanonicalProblem) error {
	sourceIDs, _ := json.Marshal(p.SourceIDs)
	keywords, _ := json.Marshal(p.Keywords)
	var provenance any
	if p.Provenance != nil {
		data, _ := json.Marshal(p.Provenance)
		provenance = string(data)
	}

	if p.ID == 0 {
		var existing int64
		err := s.db.QueryRow(
			`SELECT id FROM open_problems WHERE canonical_statement = ? ORDER BY id ASC LIMIT 1`,
			p.Statement,
		).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			// fall through to insert
		case err != nil:
			return fmt.Errorf("lookup problem: %w", err)
		default:
			p.ID = existing
		}
	}

	if p.ID != 0 {
		_, err := s.db.Exec(
			`UPDATE open_problems
			 SET canonical_statement = ?, domain = ?, subdomain = ?, scope = ?,
			     mention_count = ?, source_ids = ?, related_keywords = ?,
			     original_text = ?, notes = ?,
			     provenance = COALESCE(?, provenance)
			 WHERE id = ?`,
			p.Statement, p.Domain, p.Subdomain, string(p.Scope),
			p.MentionCount, string(sourceIDs), string(keywords),
			p.OriginalText, p.Notes, provenance, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update problem %d: %w", p.ID, err)
		}
		return s.replaceSubQuestions(p.ID, p.SubQuestions)
	}

	res, err := s.db.Exec(
		`INSERT INTO open_problems
		 (canonical_statement, domain, subdomain, scope, mention_count,
		  source_ids, related_keywords, original_text, notes, provenance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Statement, p.Domain, p.Subdomain, string(p.Scope), p.MentionCount,
		string(sourceIDs), string(keywords), p.OriginalText, p.Notes, provenance,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert problem: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert problem id: %w", err)
	}
	return s.replaceSubQuestions(p.ID, p.SubQuestions)
}

func (s *Store) replaceSubQuestions(problemID int64, sqs []model.SubQuestion) error {
	if _, err := s.db.Exec(`DELETE FROM sub_questions WHERE problem_id = ?`, problemID); err != nil {
		return fmt.Errorf("clear sub-questions: %w", err)
	}
	for _, sq := range sqs {
		disciplines, _ := json.Marshal(sq.Disciplines)
		_, err := s.db.Exec(
			`INSERT INTO sub_questions
			 (problem_id, question, evidence_needed, disciplines, estimated_complexity, source_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			problemID, sq.Question, sq.EvidenceNeeded, string(disciplines),
			string(sq.Complexity), sq.SourceID,
		)
		if err != nil {
			return fmt.Errorf("insert sub-question: %w", err)
		}
	}
	return nil
}

// AppendSourceReference adds a source id to a problem's source list if
// absent, keeping mention_count equal to the number of distinct sources.
func (s *Store) AppendSourceReference(problemID int64, sourceID string) error {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT source_ids FROM open_problems WHERE id = ?`, problemID).Scan(&raw)
	if err != nil {
		return fmt.Errorf("load problem %d: %w", problemID, err)
	}

	var ids []string
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &ids); err != nil {
			return fmt.Errorf("decode source_ids for %d: %w", problemID, err)
		}
	}
	for _, id := range ids {
		if id == sourceID {
			return nil
		}
	}
	ids = append(ids, sourceID)
	encoded, _ := json.Marshal(ids)

	_, err = s.db.Exec(
		`UPDATE open_problems SET source_ids = ?, mention_count = ? WHERE id = ?`,
		string(encoded), len(ids), problemID,
	)
	if err != nil {
		return fmt.Errorf("append source reference: %w", err)
	}
	return nil
}

// ListFilter narrows ListProblems output. Zero values match everything.
type ListFilter struct {
	Domain      string
	Scope       model.Scope
	MinMentions int
	RunID       string
}

// ListProblems returns canonical problems ordered by mention count then id,
// with their sub-questions attached.
func (s *Store) ListProblems(filter ListFilter) ([]model.CanonicalProblem, error) {
	query := `SELECT op.id, op.canonical_statement, op.domain, op.subdomain, op.scope,
	                 op.mention_count, op.source_ids, op.related_keywords,
	                 op.original_text, op.notes, op.provenance, op.created_at
	          FROM open_problems op`
	var conds []string
	var args []any

	if filter.RunID != "" {
		query += ` JOIN run_problems rp ON rp.problem_id = op.id`
		conds = append(conds, "rp.run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Domain != "" {
		conds = append(conds, "op.domain = ?")
		args = append(args, filter.Domain)
	}
	if filter.Scope != "" {
		conds = append(conds, "op.scope = ?")
		args = append(args, string(filter.Scope))
	}
	if filter.MinMentions > 0 {
		conds = append(conds, "op.mention_count >= ?")
		args = append(args, filter.MinMentions)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY op.mention_count DESC, op.id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var problems []model.CanonicalProblem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	for i := range problems {
		sqs, err := s.subQuestions(problems[i].ID)
		if err != nil {
			return nil, err
		}
		problems[i].SubQuestions = sqs
	}
	return problems, nil
}

func scanProblem(rows *sql.Rows) (model.CanonicalProblem, error) {
	var p model.CanonicalProblem
	var scope string
	var sourceIDs, keywords, originalText, notes, provenance, createdAt sql.NullString

	if err := rows.Scan(&p.ID, &p.Statement, &p.Domain, &p.Subdomain, &scope,
		&p.MentionCount, &sourceIDs, &keywords, &originalText, &notes, &provenance, &createdAt); err != nil {
		return p, fmt.Errorf("scan problem: %w", err)
	}
	p.Scope = model.Scope(scope)
	if sourceIDs.Valid && sourceIDs.String != "" {
		_ = json.Unmarshal([]byte(sourceIDs.String), &p.SourceIDs)
	}
	if keywords.Valid && keywords.String != "" {
		_ = json.Unmarshal([]byte(keywords.String), &p.Keywords)
	}
	p.OriginalText = originalText.String
	p.Notes = notes.String
	if provenance.Valid && provenance.String != "" {
		var prov model.Provenance
		if json.Unmarshal([]byte(provenance.String), &prov) == nil {
			p.Provenance = &prov
		}
	}
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			p.CreatedAt = t
		}
	}
	return p, nil
}

func (s *Store) subQuestions(problemID int64) ([]model.SubQuestion, error) {
	rows, err := s.db.Query(
		`SELECT question, evidence_needed, disciplines, estimated_complexity, source_id
		 FROM sub_questions WHERE problem_id = ? ORDER BY id`, problemID)
	if err != nil {
		return nil, fmt.Errorf("load sub-questions: %w", err)
	}
	defer rows.Close()

	var sqs []model.SubQuestion
	for rows.Next() {
		var sq model.SubQuestion
		var disciplines, complexity, sourceID sql.NullString
		if err := rows.Scan(&sq.Question, &sq.EvidenceNeeded, &disciplines, &complexity, &sourceID); err != nil {
			return nil, fmt.Errorf("scan sub-question: %w", err)
		}
		if disciplines.Valid && disciplines.String != "" {
			_ = json.Unmarshal([]byte(disciplines.String), &sq.Disciplines)
		}
		sq.Complexity = model.Complexity(complexity.String)
		sq.SourceID = sourceID.String
		sqs = append(sqs, sq)
	}
	return sqs, rows.Err()
}

// LinkRunProblem attaches a problem to a run for per-run feed export.
func (s *Store) LinkRunProblem(runID string, problemID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO run_problems (run_id, problem_id) VALUES (?, ?)`,
		runID, problemID)
	if err != nil {
		return fmt.Errorf("link run problem: %w", err)
	}
	return nil
}

// RecordRun persists a completed pipeline run. Write-once.
func (s *Store) RecordRun(run model.PipelineRun) error {
	sourceTypes, _ := json.Marshal(run.SourceTypes)
	_, err := s.db.Exec(
		`INSERT INTO pipeline_runs
		 (run_id, started_at, run_date, source_types, sources_ingested, signal_passages,
		  problems_extracted, problems_after_dedup, sub_questions_extracted, total_cost, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.Format(time.RFC3339),
		run.FinishedAt.Format(time.RFC3339), string(sourceTypes),
		run.Counters.SourcesScanned, run.Counters.SignalPassages,
		run.Counters.ProblemsExtracted, run.Counters.ProblemsAfterDedup,
		run.Counters.SubQuestions, run.TotalCost, run.Config,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RunCounters loads the recorded counters and cost for one run.
func (s *Store) RunCounters(runID string) (model.RunCounters, float64, error) {
	var c model.RunCounters
	var cost float64
	err := s.db.QueryRow(
		`SELECT sources_ingested, signal_passages, problems_extracted,
		        problems_after_dedup, sub_questions_extracted, total_cost
		 FROM pipeline_runs WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID,
	).Scan(&c.SourcesScanned, &c.SignalPassages, &c.ProblemsExtracted,
		&c.ProblemsAfterDedup, &c.SubQuestions, &cost)
	if err == sql.ErrNoRows {
		return c, 0, nil
	}
	if err != nil {
		return c, 0, fmt.Errorf("load run %s: %w", runID, err)
	}
	return c, cost, nil
}

// TotalCounters aggregates counters across every recorded run.
func (s *Store) TotalCounters() (model.RunCounters, error) {
	var c model.RunCounters
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(sources_ingested), 0), COALESCE(SUM(signal_passages), 0),
		        COALESCE(SUM(problems_extracted), 0), COALESCE(SUM(problems_after_dedup), 0),
		        COALESCE(SUM(sub_questions_extracted), 0)
		 FROM pipeline_runs`,
	).Scan(&c.SourcesScanned, &c.SignalPassages, &c.ProblemsExtracted,
		&c.ProblemsAfterDedup, &c.SubQuestions)
	if err != nil {
		return c, fmt.Errorf("aggregate runs: %w", err)
	}
	return c, nil
}

// ExtractedSourceIDs returns every source id already contributing to a stored
// problem, so later runs can skip documents extracted before.
func (s *Store) ExtractedSourceIDs() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT source_ids FROM open_problems`)
	if err != nil {
		return nil, fmt.Errorf("load extracted source ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan source_ids: %w", err)
		}
		if !raw.Valid || raw.String == "" {
			continue
		}
		var list []string
		if json.Unmarshal([]byte(raw.String), &list) != nil {
			continue
		}
		for _, id := range list {
			ids[id] = true
		}
	}
	return ids, rows.Err()
}

// SourceRef is the source detail nested in the exported feed.
type SourceRef struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// SourceRef loads the feed detail for one source id.
func (s *Store) SourceRef(id string) (*SourceRef, error) {
	var ref SourceRef
	var url sql.NullString
	err := s.db.QueryRow(
		`SELECT id, source_type, title, url FROM sources WHERE id = ?`, id,
	).Scan(&ref.ID, &ref.Type, &ref.Title, &url)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", id, err)
	}
	ref.URL = url.String
	return &ref, nil
}
