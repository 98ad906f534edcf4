package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages run-journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Cycle is one recorded orchestrator cycle.
type Cycle struct {
	ID           int64
	CycleID      string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Outcome      string
	JobRow       int64
	ResultURL    string
	ErrorMessage string
}

// Attempt is one stage attempt inside a cycle.
type Attempt struct {
	ID           int64
	CycleRowID   int64
	Stage        string
	Attempt      int
	StartedAt    time.Time
	Duration     time.Duration
	Outcome      string
	ErrorMessage string
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location on disk.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// BeginCycle inserts a new cycle row and returns its row id.
func (s *Store) BeginCycle(ctx context.Context, cycleID string) (int64, error) {
	if cycleID == "" {
		return 0, errors.New("cycle id required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cycles (cycle_id, started_at) VALUES (?, ?)`,
		cycleID,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishCycle records the terminal disposition of a cycle. jobRow is zero
// when the cycle never claimed a job.
func (s *Store) FinishCycle(ctx context.Context, rowID int64, outcome string, jobRow int64, resultURL, errorMessage string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE cycles SET finished_at = ?, outcome = ?, job_row = ?, result_url = ?, error_message = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		outcome,
		jobRow,
		nullableString(resultURL),
		nullableString(errorMessage),
		rowID,
	)
	if err != nil {
		return fmt.Errorf("finish cycle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish cycle: no cycle with id %d", rowID)
	}
	return nil
}

// RecordAttempt appends one stage attempt under a cycle.
func (s *Store) RecordAttempt(ctx context.Context, cycleRowID int64, stage string, attempt int, startedAt time.Time, duration time.Duration, outcome, errorMessage string) error {
	if stage == "" {
		return errors.New("stage required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attempts (cycle_row_id, stage, attempt, started_at, duration_ms, outcome, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycleRowID,
		stage,
		attempt,
		startedAt.UTC().Format(time.RFC3339Nano),
		duration.Milliseconds(),
		outcome,
		nullableString(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

const cycleColumns = "id, cycle_id, started_at, finished_at, outcome, job_row, result_url, error_message"

// RecentCycles returns up to limit cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]*Cycle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+cycleColumns+` FROM cycles ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*Cycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}

// LastCycle returns the most recent cycle, or nil when the journal is empty.
func (s *Store) LastCycle(ctx context.Context) (*Cycle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles ORDER BY id DESC LIMIT 1`)
	cycle, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cycle: %w", err)
	}
	return cycle, nil
}

// AttemptsForCycle lists the attempts recorded under a cycle in insertion order.
func (s *Store) AttemptsForCycle(ctx context.Context, cycleRowID int64) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, cycle_row_id, stage, attempt, started_at, duration_ms, outcome, error_message
         FROM attempts WHERE cycle_row_id = ? ORDER BY id`,
		cycleRowID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var (
			a          Attempt
			startedRaw string
			durationMS int64
			outcome    sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.CycleRowID, &a.Stage, &a.Attempt, &startedRaw, &durationMS, &outcome, &errMsg); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if started, err := parseTimeString(startedRaw); err == nil {
			a.StartedAt = started
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond
		a.Outcome = outcome.String
		a.ErrorMessage = errMsg.String
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// OutcomeCounts tallies finished cycles per outcome label.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT outcome, COUNT(1) FROM cycles WHERE finished_at IS NOT NULL GROUP BY outcome`,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			outcome string
			count   int64
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

func scanCycle(scanner interface{ Scan(dest ...any) error }) (*Cycle, error) {
	var (
		id          int64
		cycleID     string
		startedRaw  string
		finishedRaw sql.NullString
		outcome     string
		jobRow      sql.NullInt64
		resultURL   sql.NullString
		errMsg      sql.NullString
	)
	if err := scanner.Scan(&id, &cycleID, &startedRaw, &finishedRaw, &outcome, &jobRow, &resultURL, &errMsg); err != nil {
		return nil, err
	}

	cycle := &Cycle{
		ID:           id,
		CycleID:      cycleID,
		Outcome:      outcome,
		JobRow:       jobRow.Int64,
		ResultURL:    resultURL.String,
		ErrorMessage: errMsg.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		cycle.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			cycle.FinishedAt = &finished
		}
	}
	return cycle, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
