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

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/lampctl/lampctl/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a store instance for the given database file.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("stores: database path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Init opens the database and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("stores: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("stores: failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("stores: failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("stores: database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("stores: failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("stores: failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("stores: failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("stores: failed to run migrations: %w", err)
	}
	return nil
}

// BeginRun records the start of an executor run.
func (s *SQLiteStore) BeginRun(ctx context.Context, runID, planID string, intent engine.Intent, startedAt time.Time) error {
	query := `
		INSERT INTO runs (id, plan_id, intent_kind, site_name, php_version, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		runID, planID, string(intent.Kind), intent.SiteName, intent.PHPVersion,
		string(engine.RunStateExecuting), startedAt)
	if err != nil {
		return fmt.Errorf("stores: failed to create run: %w", err)
	}
	return nil
}

// RecordEntry appends one journal entry under a run.
func (s *SQLiteStore) RecordEntry(ctx context.Context, runID string, entry engine.JournalEntry) error {
	query := `
		INSERT INTO journal_entries (run_id, operation_id, kind, target, description, outcome, irreversible, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	op := entry.Operation
	_, err := s.db.ExecContext(ctx, query,
		runID, op.ID, string(op.Kind), op.Target, op.Description,
		string(entry.Outcome), op.Irreversible, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("stores: failed to record journal entry: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal state.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, state engine.RunState, detail string, completedAt time.Time) error {
	query := `UPDATE runs SET state = ?, detail = ?, completed_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, string(state), detail, completedAt, runID)
	if err != nil {
		return fmt.Errorf("stores: failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("stores: run not found: %s", runID)
	}
	return nil
}

// AppendAudit persists one operation transition.
func (s *SQLiteStore) AppendAudit(ctx context.Context, event engine.AuditEvent) error {
	query := `
		INSERT INTO audit_events (run_id, operation_id, kind, target, outcome, actor, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.RunID, event.OperationID, string(event.Kind), event.Target,
		string(event.Outcome), event.Actor, event.Detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("stores: failed to append audit event: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, plan_id, intent_kind, site_name, php_version, state, detail, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("stores: failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r := &RunRecord{}
		var detail sql.NullString
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.PlanID, &r.IntentKind, &r.SiteName, &r.PHPVersion,
			&r.State, &detail, &r.StartedAt, &completed); err != nil {
			return nil, fmt.Errorf("stores: failed to scan run: %w", err)
		}
		r.Detail = detail.String
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListJournal returns a run's journal entries in execution order.
func (s *SQLiteStore) ListJournal(ctx context.Context, runID string) ([]*JournalRecord, error) {
	query := `
		SELECT id, run_id, operation_id, kind, target, description, outcome, irreversible, timestamp
		FROM journal_entries WHERE run_id = ? ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("stores: failed to list journal: %w", err)
	}
	defer rows.Close()

	var entries []*JournalRecord
	for rows.Next() {
		e := &JournalRecord{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.OperationID, &e.Kind, &e.Target,
			&e.Description, &e.Outcome, &e.Irreversible, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("stores: failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListAudit returns a run's audit events in recorded order.
func (s *SQLiteStore) ListAudit(ctx context.Context, runID string) ([]*AuditRecord, error) {
	query := `
		SELECT id, run_id, operation_id, kind, target, outcome, actor, detail, timestamp
		FROM audit_events WHERE run_id = ? ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("stores: failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*AuditRecord
	for rows.Next() {
		e := &AuditRecord{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.OperationID, &e.Kind, &e.Target,
			&e.Outcome, &e.Actor, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("stores: failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
