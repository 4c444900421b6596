// Package history keeps a sqlite record of validation runs so a run can be
// compared with the previous run of the same mode and selection.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/bookcheck/internal/models"
)

// RunRecord summarizes one stored run.
type RunRecord struct {
	ID               string
	Mode             string
	Selection        string
	StartedAt        time.Time
	ToolchainVersion string
	BookRevision     string
	Totals           models.Counts
	PassRate         float64
	GatePassed       bool
	WallClockMs      int64
}

// Store manages the run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath and applies
// pending migrations. ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout goes first so the remaining pragmas wait on locks held
	// by a concurrent bookcheck process.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores the report's run summary and every recorded outcome in
// one transaction. A report without a RunID gets a fresh one, which is
// returned.
func (s *Store) RecordRun(ctx context.Context, rep models.ValidationReport) (string, error) {
	runID := rep.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	startedAt := rep.GeneratedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, mode, selection, started_at, toolchain_version, book_revision, passed, expected_fail, failed, baseline, pass_rate, gate_passed, wall_clock_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rep.Mode,
		rep.Selection,
		startedAt.UTC(),
		rep.ToolchainVersion,
		rep.BookRevision,
		rep.Totals.Passed,
		rep.Totals.ExpectedFail,
		rep.Totals.Failed,
		rep.Totals.Baseline,
		rep.PassRate,
		rep.GatePassed,
		rep.WallClockMs,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO outcomes
		(run_id, example_key, tool_name, exit_code, outcome, category, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range rep.Outcomes() {
		if _, err := stmt.ExecContext(ctx, runID, o.ExampleKey, o.ToolName, o.ExitCode, string(o.Kind), string(o.Category), o.DurationMs); err != nil {
			return "", fmt.Errorf("insert outcome %s/%s: %w", o.ExampleKey, o.ToolName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// PreviousOutcomes returns the outcomes of the most recent run with the same
// mode and selection, or nil when there is none.
func (s *Store) PreviousOutcomes(ctx context.Context, mode, selection string) ([]models.ToolOutcome, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE mode = ? AND selection = ? ORDER BY started_at DESC, seq DESC LIMIT 1`,
		mode, selection).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query previous run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT example_key, tool_name, exit_code, outcome, category, duration_ms
		FROM outcomes WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.ToolOutcome
	for rows.Next() {
		var o models.ToolOutcome
		var kind, category string
		if err := rows.Scan(&o.ExampleKey, &o.ToolName, &o.ExitCode, &kind, &category, &o.DurationMs); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		o.Kind = models.OutcomeKind(kind)
		o.Category = models.ErrorCategory(category)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return outcomes, nil
}

// ListRuns returns up to limit runs, most recent first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, mode, selection, started_at, toolchain_version, book_revision,
		passed, expected_fail, failed, baseline, pass_rate, gate_passed, wall_clock_ms
		FROM runs ORDER BY started_at DESC, seq DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var toolchain, revision sql.NullString
		err := rows.Scan(
			&r.ID,
			&r.Mode,
			&r.Selection,
			&r.StartedAt,
			&toolchain,
			&revision,
			&r.Totals.Passed,
			&r.Totals.ExpectedFail,
			&r.Totals.Failed,
			&r.Totals.Baseline,
			&r.PassRate,
			&r.GatePassed,
			&r.WallClockMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.ToolchainVersion = toolchain.String
		r.BookRevision = revision.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs and their outcomes, returning
// how many runs were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	const stale = `SELECT id FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, seq DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return removed, nil
}
