// Package store keeps the run history in SQLite: one row per run and one
// row per candidate date, so failed dates can be retried by hand.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pbaille/reportcard/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	// ErrRunNotFound is returned when no run matches an id prefix.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when an id prefix matches several runs.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the ledger at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished run with its per-date outcomes. A report without
// an ID gets one.
func (s *Store) SaveRun(r *domain.RunReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs (
			id, mode, target_date, started_at, finished_at,
			candidates, extracted, skipped, failed, warnings,
			aggregated, analyses, excluded, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.TargetDate, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Candidates, r.Extracted, r.Skipped, r.Failed, r.Warnings,
		r.Aggregated, r.Analyses, r.Excluded, r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM run_dates WHERE run_id = ?", r.ID); err != nil {
		return fmt.Errorf("clear run dates: %w", err)
	}
	for _, o := range r.Outcomes {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO run_dates (run_id, date, status, phase, message) VALUES (?, ?, ?, ?, ?)",
			r.ID, o.Date, o.Status, o.Phase, o.Message,
		)
		if err != nil {
			return fmt.Errorf("insert run date: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, mode, target_date, started_at, finished_at,
	candidates, extracted, skipped, failed, warnings,
	aggregated, analyses, excluded, error`

// ListRuns returns the most recent runs first, without their outcomes.
func (s *Store) ListRuns(limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run, with its outcomes, by id or unique id prefix.
func (s *Store) GetRun(idPrefix string) (*domain.RunReport, error) {
	if idPrefix == "" {
		return nil, ErrRunNotFound
	}
	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2",
		idPrefix, idPrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*domain.RunReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, idPrefix)
	}

	run := found[0]
	run.Outcomes, err = s.outcomes(run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FailedDates lists the dates of a run that failed or had no record.
func (s *Store) FailedDates(runID string) ([]string, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	return run.FailedDates(), nil
}

func (s *Store) outcomes(runID string) ([]domain.DateOutcome, error) {
	rows, err := s.db.Query(`
		SELECT date, status, phase, message
		FROM run_dates
		WHERE run_id = ?
		ORDER BY date
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run dates: %w", err)
	}
	defer rows.Close()

	var out []domain.DateOutcome
	for rows.Next() {
		var o domain.DateOutcome
		if err := rows.Scan(&o.Date, &o.Status, &o.Phase, &o.Message); err != nil {
			return nil, fmt.Errorf("scan run date: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunReport, error) {
	var r domain.RunReport
	var started, finished time.Time
	err := row.Scan(
		&r.ID, &r.Mode, &r.TargetDate, &started, &finished,
		&r.Candidates, &r.Extracted, &r.Skipped, &r.Failed, &r.Warnings,
		&r.Aggregated, &r.Analyses, &r.Excluded, &r.Error,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, r.FinishedAt = started.UTC(), finished.UTC()
	return &r, nil
}
