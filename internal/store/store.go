// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store archives research runs in SQLite with a full-text index
// over report titles, summaries and findings.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// ErrNotFound is returned when a run id is not in the archive.
var ErrNotFound = errors.New("run not found")

const defaultLimit = 20

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run kinds.
const (
	KindResearch = "research"
	KindQuick    = "quick"
	KindAgent    = "agent"
)

// RunRecord is everything archived for one run.
type RunRecord struct {
	ID         string
	Query      string
	Kind       string
	Iterations int
	StopReason string
	ReportPath string
	CreatedAt  time.Time

	Sources []types.SourceRecord
	History []types.SearchHistoryEntry
	Report  *types.ResearchReport
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID          string    `json:"id" yaml:"id"`
	Query       string    `json:"query" yaml:"query"`
	Kind        string    `json:"kind" yaml:"kind"`
	Title       string    `json:"title" yaml:"title"`
	SourceCount int       `json:"source_count" yaml:"source_count"`
	StopReason  string    `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	ReportPath  string    `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Store manages the run archive database.
type Store struct {
	db *sql.DB

	// fts is false when the sqlite driver was built without FTS5; report
	// search then falls back to substring matching.
	fts bool
}

// Open opens or creates the archive at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			query TEXT NOT NULL,
			kind TEXT NOT NULL,
			iterations INTEGER,
			stop_reason TEXT,
			title TEXT,
			summary TEXT,
			findings TEXT,
			report_json TEXT,
			report_path TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT,
			url TEXT NOT NULL,
			published_date TEXT,
			relevance_score REAL,
			content_length INTEGER,
			content_summary TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_url ON sources(url)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			query TEXT NOT NULL,
			result_count INTEGER,
			urls TEXT,
			PRIMARY KEY (run_id, position)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='reports_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}
	if _, err := s.db.Exec(`CREATE VIRTUAL TABLE reports_fts USING fts5(title, summary, findings, content=runs, content_rowid=rowid)`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			return nil
		}
		return fmt.Errorf("creating FTS table: %w", err)
	}
	s.fts = true

	triggers := []string{
		`CREATE TRIGGER runs_ai AFTER INSERT ON runs BEGIN
			INSERT INTO reports_fts(rowid, title, summary, findings) VALUES (new.rowid, new.title, new.summary, new.findings);
		END`,
		`CREATE TRIGGER runs_ad AFTER DELETE ON runs BEGIN
			INSERT INTO reports_fts(reports_fts, rowid, title, summary, findings) VALUES('delete', old.rowid, old.title, old.summary, old.findings);
		END`,
		`CREATE TRIGGER runs_au AFTER UPDATE ON runs BEGIN
			INSERT INTO reports_fts(reports_fts, rowid, title, summary, findings) VALUES('delete', old.rowid, old.title, old.summary, old.findings);
			INSERT INTO reports_fts(rowid, title, summary, findings) VALUES (new.rowid, new.title, new.summary, new.findings);
		END`,
	}
	for _, stmt := range triggers {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS triggers: %w", err)
		}
	}
	return nil
}

// SaveRun writes rec, replacing any earlier record with the same id.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: run id is empty", types.ErrValidation)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var title, summary, findings, reportJSON string
	if rec.Report != nil {
		title = rec.Report.Title
		summary = rec.Report.Summary
		findings = strings.Join(rec.Report.KeyFindings, "\n")
		data, err := json.Marshal(rec.Report)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		reportJSON = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, kind, iterations, stop_reason, title, summary, findings, report_json, report_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			query=excluded.query, kind=excluded.kind, iterations=excluded.iterations,
			stop_reason=excluded.stop_reason, title=excluded.title, summary=excluded.summary,
			findings=excluded.findings, report_json=excluded.report_json,
			report_path=excluded.report_path, created_at=excluded.created_at`,
		rec.ID, rec.Query, rec.Kind, rec.Iterations, rec.StopReason,
		title, summary, findings, reportJSON, rec.ReportPath,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	for _, table := range []string{"sources", "search_history"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, rec.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	srcStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (run_id, position, title, url, published_date, relevance_score, content_length, content_summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing source insert: %w", err)
	}
	defer srcStmt.Close()
	for i, src := range rec.Sources {
		if _, err := srcStmt.ExecContext(ctx, rec.ID, i, src.Title, src.URL, src.PublishedDate,
			src.RelevanceScore, len(src.Content), src.ContentSummary); err != nil {
			return fmt.Errorf("inserting source %s: %w", src.URL, err)
		}
	}

	histStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO search_history (run_id, position, query, result_count, urls) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing history insert: %w", err)
	}
	defer histStmt.Close()
	for i, h := range rec.History {
		urls, _ := json.Marshal(h.URLs)
		if _, err := histStmt.ExecContext(ctx, rec.ID, i, h.Query, h.ResultCount, string(urls)); err != nil {
			return fmt.Errorf("inserting history entry %q: %w", h.Query, err)
		}
	}

	return tx.Commit()
}

const summaryColumns = `r.id, r.query, r.kind, r.title, r.stop_reason, r.report_path, r.created_at,
	(SELECT count(*) FROM sources s WHERE s.run_id = r.id)`

// ListRuns returns the most recent runs first. A limit of zero uses 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return scanSummaries(rows)
}

// SearchReports runs an FTS5 match over report titles, summaries and
// findings and returns the best matches first.
func (s *Store) SearchReports(ctx context.Context, match string, limit int) ([]RunSummary, error) {
	if strings.TrimSpace(match) == "" {
		return nil, fmt.Errorf("%w: empty search", types.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if !s.fts {
		return s.searchLike(ctx, match, limit)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		FROM reports_fts
		JOIN runs r ON r.rowid = reports_fts.rowid
		WHERE reports_fts MATCH ?
		ORDER BY reports_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching reports: %w", err)
	}
	return scanSummaries(rows)
}

// searchLike requires every term of match to appear in the title, summary
// or findings. FTS operators and prefix stars are ignored.
func (s *Store) searchLike(ctx context.Context, match string, limit int) ([]RunSummary, error) {
	var (
		where []string
		args  []any
	)
	for _, term := range strings.Fields(match) {
		term = strings.Trim(term, `*"()`)
		switch term {
		case "", "AND", "OR", "NOT":
			continue
		}
		pattern := "%" + term + "%"
		where = append(where, `(r.title LIKE ? OR r.summary LIKE ? OR r.findings LIKE ?)`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("%w: no search terms in %q", types.ErrInvalidQuery, match)
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM runs r WHERE `+strings.Join(where, " AND ")+
			` ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("searching reports: %w", err)
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]RunSummary, error) {
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var (
			rs                      RunSummary
			title, stop, path, when sql.NullString
		)
		if err := rows.Scan(&rs.ID, &rs.Query, &rs.Kind, &title, &stop, &path, &when, &rs.SourceCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rs.Title, rs.StopReason, rs.ReportPath = title.String, stop.String, path.String
		rs.CreatedAt, _ = time.Parse(timeLayout, when.String)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetReport loads the archived report of run id.
func (s *Store) GetReport(ctx context.Context, id string) (*types.ResearchReport, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if !data.Valid || data.String == "" {
		return nil, fmt.Errorf("%w: %s has no report", ErrNotFound, id)
	}
	var report types.ResearchReport
	if err := json.Unmarshal([]byte(data.String), &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

// Sources returns the archived sources of run id in ranked order. Content
// is not archived; ContentSummary is.
func (s *Store) Sources(ctx context.Context, id string) ([]types.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, url, published_date, relevance_score, content_summary
		FROM sources WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var out []types.SourceRecord
	for rows.Next() {
		var (
			src                  types.SourceRecord
			title, date, summary sql.NullString
		)
		if err := rows.Scan(&title, &src.URL, &date, &src.RelevanceScore, &summary); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		src.Title, src.PublishedDate, src.ContentSummary = title.String, date.String, summary.String
		out = append(out, src)
	}
	return out, rows.Err()
}

// History returns the archived search history of run id.
func (s *Store) History(ctx context.Context, id string) ([]types.SearchHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, result_count, urls FROM search_history WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []types.SearchHistoryEntry
	for rows.Next() {
		var (
			h    types.SearchHistoryEntry
			urls sql.NullString
		)
		if err := rows.Scan(&h.Query, &h.ResultCount, &urls); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		if urls.Valid {
			json.Unmarshal([]byte(urls.String), &h.URLs)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
