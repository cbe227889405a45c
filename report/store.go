package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started     TEXT    NOT NULL,
	duration_ns INTEGER NOT NULL,
	suites      TEXT    NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	aborted     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	position    INTEGER NOT NULL,
	case_id     TEXT    NOT NULL,
	driver      TEXT    NOT NULL,
	path        TEXT    NOT NULL,
	state       TEXT    NOT NULL,
	checks      INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	check_name  TEXT    NOT NULL,
	expected    TEXT    NOT NULL,
	actual      TEXT    NOT NULL,
	message     TEXT    NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS results_case ON results(case_id);
`

// Store keeps run results in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save stores run and its results in one transaction and sets run.ID.
func (s *Store) Save(ctx context.Context, run *Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	sum := run.Summary()
	suites := strings.Join(run.Suites, "\n")
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started, duration_ns, suites, total, passed, failed, aborted) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Started.UTC().Format(time.RFC3339Nano), int64(run.Duration), suites,
		sum.Total, sum.Passed, sum.Failed, sum.Aborted)
	if err != nil {
		return fmt.Errorf("report: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, position, case_id, driver, path, state, checks, duration_ns, kind, check_name, expected, actual, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range run.Results {
		var kind, check, expected, actual, message string
		if f := r.Failure; f != nil {
			kind, check, expected, actual, message = f.Kind.String(), f.Check, f.Expected, f.Actual, f.Error()
		}
		if _, err = stmt.ExecContext(ctx, id, i, r.CaseID, r.Driver, r.Path, r.State.String(),
			r.Checks, int64(r.Duration), kind, check, expected, actual, message); err != nil {
			return fmt.Errorf("report: insert result %s: %w", r.CaseID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	run.ID = id
	return nil
}

// Record is a stored result of one case.
type Record struct {
	RunID    int64
	Started  time.Time
	CaseID   string
	Driver   string
	Path     string
	State    string
	Checks   int
	Duration time.Duration
	Kind     string // empty when the case passed
	Check    string
	Expected string
	Actual   string
	Message  string
}

// History returns the stored results of caseID, newest run first. A limit
// of zero or less returns every result.
func (s *Store) History(ctx context.Context, caseID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, runs.started, r.case_id, r.driver, r.path, r.state, r.checks,
		       r.duration_ns, r.kind, r.check_name, r.expected, r.actual, r.message
		FROM results r JOIN runs ON runs.id = r.run_id
		WHERE r.case_id = ?
		ORDER BY r.run_id DESC
		LIMIT ?`, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("report: query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			started  string
			duration int64
		)
		if err := rows.Scan(&rec.RunID, &started, &rec.CaseID, &rec.Driver, &rec.Path, &rec.State,
			&rec.Checks, &duration, &rec.Kind, &rec.Check, &rec.Expected, &rec.Actual, &rec.Message); err != nil {
			return nil, err
		}
		rec.Started, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("report: run %d: %w", rec.RunID, err)
		}
		rec.Duration = time.Duration(duration)
		records = append(records, rec)
	}
	return records, rows.Err()
}
