// Package storage keeps the history of research runs started from the
// command line.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/pkg/sqlite"
)

const (
	StatusDone  = "done"
	StatusError = "error"
)

var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

// Run is one recorded research run.
type Run struct {
	ID         string
	Ticker     string
	Start      string
	End        string
	Status     string
	ReportPath string
	Error      string
	CreatedAt  time.Time
	Outputs    []*crew.TaskOutput
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    dt_start TEXT NOT NULL,
    dt_end TEXT NOT NULL,
    status TEXT NOT NULL,
    report_path TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_outputs (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    agent TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    output TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker_created ON runs(ticker, created_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Record stores run and its task outputs in one transaction. A missing ID or
// creation time is filled in.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if strings.TrimSpace(run.Ticker) == "" {
		return errors.New("run ticker is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusDone
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, ticker, dt_start, dt_end, status, report_path, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, strings.ToUpper(run.Ticker), run.Start, run.End, run.Status, run.ReportPath, run.Error, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, out := range run.Outputs {
		_, err = tx.ExecContext(ctx, `
INSERT INTO task_outputs (run_id, seq, name, agent, description, output)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, i+1, out.Name, out.Agent, out.Description, out.ExportedOutput)
		if err != nil {
			return fmt.Errorf("insert task output %s: %w", out.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. An empty ticker lists every
// ticker; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, ticker string, limit int) ([]Run, error) {
	query := `SELECT id, ticker, dt_start, dt_end, status, report_path, error, created_at FROM runs`
	var args []any
	if t := strings.TrimSpace(ticker); t != "" {
		query += ` WHERE ticker = ?`
		args = append(args, strings.ToUpper(t))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Ticker, &r.Start, &r.End, &r.Status, &r.ReportPath, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads one run together with its task outputs in execution order.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
SELECT id, ticker, dt_start, dt_end, status, report_path, error, created_at
FROM runs WHERE id = ?
`, id).Scan(&r.ID, &r.Ticker, &r.Start, &r.End, &r.Status, &r.ReportPath, &r.Error, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT name, agent, description, output FROM task_outputs
WHERE run_id = ? ORDER BY seq
`, id)
	if err != nil {
		return nil, fmt.Errorf("load task outputs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		out := &crew.TaskOutput{}
		if err := rows.Scan(&out.Name, &out.Agent, &out.Description, &out.ExportedOutput); err != nil {
			return nil, fmt.Errorf("scan task output: %w", err)
		}
		r.Outputs = append(r.Outputs, out)
	}
	return &r, rows.Err()
}
