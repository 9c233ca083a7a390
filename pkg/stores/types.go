package stores

import (
	"context"
	"time"

	"github.com/lampctl/lampctl/pkg/engine"
)

// RunRecord is one persisted executor run.
type RunRecord struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	IntentKind  string     `json:"intent_kind"`
	SiteName    string     `json:"site_name,omitempty"`
	PHPVersion  string     `json:"php_version"`
	State       string     `json:"state"`
	Detail      string     `json:"detail,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JournalRecord is one persisted journal entry. Effects are deliberately
// not persisted: an operation's command line can embed a credential.
type JournalRecord struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	OperationID  string    `json:"operation_id"`
	Kind         string    `json:"kind"`
	Target       string    `json:"target"`
	Description  string    `json:"description"`
	Outcome      string    `json:"outcome"`
	Irreversible bool      `json:"irreversible"`
	Timestamp    time.Time `json:"timestamp"`
}

// AuditRecord is one persisted operation transition.
type AuditRecord struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	OperationID string    `json:"operation_id"`
	Kind        string    `json:"kind"`
	Target      string    `json:"target"`
	Outcome     string    `json:"outcome"`
	Actor       string    `json:"actor,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store is the persistence layer for runs, journals and audit events. It
// satisfies engine.JournalRecorder and the telemetry audit store.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// engine.JournalRecorder
	BeginRun(ctx context.Context, runID, planID string, intent engine.Intent, startedAt time.Time) error
	RecordEntry(ctx context.Context, runID string, entry engine.JournalEntry) error
	FinishRun(ctx context.Context, runID string, state engine.RunState, detail string, completedAt time.Time) error

	// Audit persistence
	AppendAudit(ctx context.Context, event engine.AuditEvent) error

	// Inspection
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	ListJournal(ctx context.Context, runID string) ([]*JournalRecord, error)
	ListAudit(ctx context.Context, runID string) ([]*AuditRecord, error)
}
