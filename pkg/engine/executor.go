package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultOperationTimeout bounds a forward or inverse effect when neither
// the operation nor the configuration specifies one.
const DefaultOperationTimeout = 10 * time.Minute

// JournalRecorder persists runs and journal entries for post-hoc audit.
// Recording is an aid, not a gate: persistence failures do not abort a run.
type JournalRecorder interface {
	// BeginRun records the start of an executor run.
	BeginRun(ctx context.Context, runID, planID string, intent Intent, startedAt time.Time) error

	// RecordEntry appends one journal entry under a run.
	RecordEntry(ctx context.Context, runID string, entry JournalEntry) error

	// FinishRun records the terminal state of a run.
	FinishRun(ctx context.Context, runID string, state RunState, detail string, completedAt time.Time) error
}

// ExecutionResult reports how a run ended.
type ExecutionResult struct {
	// RunID identifies the executor run.
	RunID string `json:"run_id"`

	// PlanID identifies the executed plan.
	PlanID string `json:"plan_id"`

	// State is the terminal run state.
	State RunState `json:"state"`

	// FailedOperation is the ID of the operation that failed, if any.
	FailedOperation string `json:"failed_operation,omitempty"`

	// Validation is the preflight report when validation gated the run.
	Validation *ValidationReport `json:"validation,omitempty"`

	// Rollback summarizes the reversal after a failure.
	Rollback *RollbackResult `json:"rollback,omitempty"`

	// Journal is the executed-operation record, in execution order.
	Journal []JournalEntry `json:"journal"`

	// StartedAt and CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Executor runs a plan's operations in order against the real system. It
// consults the validator first, requires explicit operator confirmation,
// records each success into the transaction journal, and halts and rolls
// back on first failure.
type Executor struct {
	applier        effectApplier
	validator      *Validator
	rollback       *RollbackManager
	audit          AuditSink
	recorder       JournalRecorder
	defaultTimeout time.Duration
	actor          string
}

// NewExecutor creates an executor. The recorder may be nil; every other
// collaborator is required.
func NewExecutor(
	runner CommandRunner,
	fs FileSystem,
	validator *Validator,
	rollback *RollbackManager,
	audit AuditSink,
	recorder JournalRecorder,
	defaultTimeout time.Duration,
	actor string,
) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultOperationTimeout
	}
	return &Executor{
		applier:        effectApplier{runner: runner, fs: fs},
		validator:      validator,
		rollback:       rollback,
		audit:          audit,
		recorder:       recorder,
		defaultTimeout: defaultTimeout,
		actor:          actor,
	}
}

// Execute applies the plan. confirm must be an explicit affirmative from
// the operator: without it, no forward action is ever invoked. The returned
// result is non-nil whenever a run was started, alongside any error.
func (e *Executor) Execute(ctx context.Context, plan *Plan, confirm bool) (*ExecutionResult, error) {
	if plan == nil {
		return nil, NewOperationError("plan is nil", nil)
	}
	if !confirm {
		return nil, NewValidationError("execution requires explicit confirmation", nil).
			WithCode(ErrCodeNotConfirmed)
	}

	result := &ExecutionResult{
		RunID:     uuid.New().String(),
		PlanID:    plan.ID,
		State:     RunStateBuilt,
		StartedAt: time.Now().UTC(),
	}

	// Hard gate: nothing mutates until every required check passes.
	report := e.validator.Validate(ctx, plan.Intent)
	result.Validation = report
	if !report.OK() {
		result.CompletedAt = time.Now().UTC()
		failed := report.FailedRequired()
		err := NewValidationError("preflight validation failed", nil).
			WithDetail("failed_checks", checkNames(failed))
		return result, err
	}
	result.State = RunStateValidated

	if e.recorder != nil {
		_ = e.recorder.BeginRun(ctx, result.RunID, plan.ID, plan.Intent, result.StartedAt)
	}

	result.State = RunStateExecuting
	journal := NewJournal()

	for i := range plan.Operations {
		op := plan.Operations[i]

		e.record(ctx, result.RunID, op, AuditAttempted, "")
		outcome, err := e.applyForward(ctx, op)
		if err != nil {
			e.record(ctx, result.RunID, op, AuditFailed, err.Error())
			return e.failAndRollback(ctx, result, journal, op, err)
		}

		journal.Append(op, outcome)
		if e.recorder != nil {
			entries := journal.Entries()
			_ = e.recorder.RecordEntry(ctx, result.RunID, entries[len(entries)-1])
		}
		e.record(ctx, result.RunID, op, AuditCompleted, string(outcome))
	}

	result.State = RunStateCompleted
	result.Journal = journal.Entries()
	result.CompletedAt = time.Now().UTC()
	e.finishRun(ctx, result, "")
	return result, nil
}

// applyForward applies one forward effect under the operation's timeout.
// Cancellation of the parent context is treated as failure of the in-flight
// operation, so the journal is never left implicitly open.
func (e *Executor) applyForward(ctx context.Context, op Operation) (Outcome, error) {
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := e.applier.apply(opCtx, op.Forward, op.Idempotent)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return OutcomeFailed, NewOperationError("operation timed out", err).
				WithCode(ErrCodeOperationTimeout).WithOperation(op.ID)
		}
		var perr *ProvisionError
		if errors.As(err, &perr) {
			return OutcomeFailed, perr.WithOperation(op.ID)
		}
		return OutcomeFailed, NewOperationError("operation failed", err).WithOperation(op.ID)
	}
	return outcome, nil
}

// failAndRollback stops iteration and reverses the journal accumulated so
// far. Rollback runs detached from the caller's cancellation so an operator
// interrupt cannot also interrupt the reversal.
func (e *Executor) failAndRollback(ctx context.Context, result *ExecutionResult, journal *TransactionJournal, failed Operation, opErr error) (*ExecutionResult, error) {
	result.State = RunStateRollingBack
	result.FailedOperation = failed.ID
	result.Journal = journal.Entries()

	rbCtx := context.WithoutCancel(ctx)
	result.Rollback = e.rollback.Rollback(rbCtx, result.RunID, journal)

	if result.Rollback.Complete() {
		result.State = RunStateRolledBack
	} else {
		result.State = RunStateRollbackIncomplete
	}
	result.CompletedAt = time.Now().UTC()
	e.finishRun(rbCtx, result, opErr.Error())

	if result.State == RunStateRollbackIncomplete {
		return result, NewRollbackError("rollback incomplete after operation failure", opErr).
			WithOperation(failed.ID).
			WithDetail("rollback", result.Rollback.Summary())
	}
	return result, opErr
}

func (e *Executor) finishRun(ctx context.Context, result *ExecutionResult, detail string) {
	if e.recorder == nil {
		return
	}
	_ = e.recorder.FinishRun(ctx, result.RunID, result.State, detail, result.CompletedAt)
}

func (e *Executor) record(ctx context.Context, runID string, op Operation, outcome AuditOutcome, detail string) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, AuditEvent{
		Timestamp:   time.Now().UTC(),
		RunID:       runID,
		OperationID: op.ID,
		Kind:        op.Kind,
		Target:      op.Target,
		Outcome:     outcome,
		Actor:       e.actor,
		Detail:      detail,
	})
}

func checkNames(checks []Check) []string {
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.Name
	}
	return names
}
