package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/hookmill/hookmill/pkg/lifecycle"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements lifecycle.HistoryStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// HealthCheck verifies the database connection is alive.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateOperationRun implements lifecycle.HistoryStore.
func (s *SQLiteStore) CreateOperationRun(ctx context.Context, rec *lifecycle.OperationRecord) error {
	query := `
		INSERT INTO operation_runs (id, operation, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Operation),
		rec.Status,
		errMsg,
		rec.StartedAt,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create operation run: %w", err)
	}

	return nil
}

// CompleteOperationRun implements lifecycle.HistoryStore.
func (s *SQLiteStore) CompleteOperationRun(ctx context.Context, id string, status string, errMsg string) error {
	query := `
		UPDATE operation_runs
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}
	now := time.Now()

	result, err := s.db.ExecContext(ctx, query, status, errVal, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete operation run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("operation run not found: %s", id)
	}

	return nil
}

// CreateHookExecution implements lifecycle.HistoryStore.
func (s *SQLiteStore) CreateHookExecution(ctx context.Context, rec *lifecycle.HookExecutionRecord) error {
	query := `
		INSERT INTO hook_executions (id, run_id, phase, hook_name, kind, state, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.RunID,
		string(rec.Phase),
		rec.HookName,
		rec.Kind,
		string(rec.State),
		errMsg,
		rec.StartedAt,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hook execution: %w", err)
	}

	return nil
}

// GetOperationRun retrieves an operation run by ID.
func (s *SQLiteStore) GetOperationRun(ctx context.Context, id string) (*lifecycle.OperationRecord, error) {
	query := `
		SELECT id, operation, status, error, started_at, completed_at
		FROM operation_runs
		WHERE id = ?
	`

	rec, err := scanOperationRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation run: %w", err)
	}

	return rec, nil
}

// ListOperationRuns lists operation runs, most recent first.
func (s *SQLiteStore) ListOperationRuns(ctx context.Context, limit, offset int) ([]*lifecycle.OperationRecord, error) {
	query := `
		SELECT id, operation, status, error, started_at, completed_at
		FROM operation_runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list operation runs: %w", err)
	}
	defer rows.Close()

	runs := []*lifecycle.OperationRecord{}
	for rows.Next() {
		rec, err := scanOperationRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation run: %w", err)
		}
		runs = append(runs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation runs: %w", err)
	}

	return runs, nil
}

// ListHookExecutions lists the hook executions of one run, in execution
// order.
func (s *SQLiteStore) ListHookExecutions(ctx context.Context, runID string) ([]*lifecycle.HookExecutionRecord, error) {
	query := `
		SELECT id, run_id, phase, hook_name, kind, state, error, started_at, completed_at
		FROM hook_executions
		WHERE run_id = ?
		ORDER BY started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hook executions: %w", err)
	}
	defer rows.Close()

	executions := []*lifecycle.HookExecutionRecord{}
	for rows.Next() {
		rec := &lifecycle.HookExecutionRecord{}
		var phase, state string
		var errMsg sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&phase,
			&rec.HookName,
			&rec.Kind,
			&state,
			&errMsg,
			&rec.StartedAt,
			&rec.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hook execution: %w", err)
		}

		rec.Phase = lifecycle.Phase(phase)
		rec.State = lifecycle.ReadinessState(state)
		rec.Error = errMsg.String
		executions = append(executions, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hook executions: %w", err)
	}

	return executions, nil
}

// DeleteOperationRun deletes a run and its hook executions.
func (s *SQLiteStore) DeleteOperationRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM operation_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operation run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("operation run not found: %s", id)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperationRun(row rowScanner) (*lifecycle.OperationRecord, error) {
	rec := &lifecycle.OperationRecord{}
	var operation string
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&operation,
		&rec.Status,
		&errMsg,
		&rec.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Operation = lifecycle.Operation(operation)
	rec.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}

	return rec, nil
}
