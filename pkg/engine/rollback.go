package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RollbackFailure records one inverse effect that did not apply.
type RollbackFailure struct {
	// OperationID identifies the operation whose inverse failed.
	OperationID string `json:"operation_id"`

	// Cause is the inverse effect's failure message.
	Cause string `json:"cause"`
}

// RollbackResult summarizes a best-effort reversal. It must always reach
// the operator: a failed rollback leaves the system needing manual
// remediation.
type RollbackResult struct {
	// Reversed lists operation IDs whose inverse effects applied.
	Reversed []string `json:"reversed"`

	// Failed lists inverse effects that did not apply.
	Failed []RollbackFailure `json:"failed,omitempty"`

	// Irreversible lists operations that could not be undone by design.
	Irreversible []string `json:"irreversible,omitempty"`
}

// Complete reports whether every reversible operation was undone.
func (r *RollbackResult) Complete() bool {
	return len(r.Failed) == 0
}

// Summary renders the result for operator display.
func (r *RollbackResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rollback: %d reversed, %d failed, %d irreversible",
		len(r.Reversed), len(r.Failed), len(r.Irreversible))
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n  FAILED to reverse %s: %s", f.OperationID, f.Cause)
	}
	for _, id := range r.Irreversible {
		fmt.Fprintf(&b, "\n  NOT UNDONE (irreversible): %s", id)
	}
	return b.String()
}

// RollbackManager reverses executed operations after a failure. It consumes
// the transaction journal from its tail backward exactly once, invoking
// inverse effects where they exist and surfacing irreversible operations
// instead of silently skipping them.
type RollbackManager struct {
	applier        effectApplier
	audit          AuditSink
	defaultTimeout time.Duration
	actor          string
}

// NewRollbackManager creates a rollback manager.
func NewRollbackManager(runner CommandRunner, fs FileSystem, audit AuditSink, defaultTimeout time.Duration, actor string) *RollbackManager {
	return &RollbackManager{
		applier:        effectApplier{runner: runner, fs: fs},
		audit:          audit,
		defaultTimeout: defaultTimeout,
		actor:          actor,
	}
}

// Rollback undoes the journal in reverse chronological order. Reversal is
// best-effort: a failed inverse never aborts the remainder, because partial
// reversal is strictly better than none.
func (m *RollbackManager) Rollback(ctx context.Context, runID string, journal *TransactionJournal) *RollbackResult {
	result := &RollbackResult{}

	for _, entry := range journal.consumeReversed() {
		op := entry.Operation

		if op.Irreversible || op.Inverse == nil {
			result.Irreversible = append(result.Irreversible, op.ID)
			m.record(ctx, runID, op, AuditNotUndone, "no inverse action available")
			continue
		}

		timeout := op.Timeout
		if timeout <= 0 {
			timeout = m.defaultTimeout
		}
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		_, err := m.applier.apply(opCtx, *op.Inverse, false)
		cancel()

		if err != nil {
			result.Failed = append(result.Failed, RollbackFailure{OperationID: op.ID, Cause: err.Error()})
			m.record(ctx, runID, op, AuditRollbackFailed, err.Error())
			continue
		}
		result.Reversed = append(result.Reversed, op.ID)
		m.record(ctx, runID, op, AuditRolledBack, "")
	}

	return result
}

func (m *RollbackManager) record(ctx context.Context, runID string, op Operation, outcome AuditOutcome, detail string) {
	if m.audit == nil {
		return
	}
	m.audit.Record(ctx, AuditEvent{
		Timestamp:   time.Now().UTC(),
		RunID:       runID,
		OperationID: op.ID,
		Kind:        op.Kind,
		Target:      op.Target,
		Outcome:     outcome,
		Actor:       m.actor,
		Detail:      detail,
	})
}
