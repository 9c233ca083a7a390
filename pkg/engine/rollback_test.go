package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestRollbackManager(runner *fakeRunner, audit *fakeAudit) *RollbackManager {
	return NewRollbackManager(runner, newFakeFS(), audit, time.Minute, "tester")
}

func TestRollbackManager_Rollback_ReverseOrder(t *testing.T) {
	runner := &fakeRunner{}
	mgr := newTestRollbackManager(runner, &fakeAudit{})

	journal := NewJournal()
	journal.Append(commandOp("A"), OutcomeSucceeded)
	journal.Append(commandOp("B"), OutcomeSucceeded)
	journal.Append(commandOp("C"), OutcomeSucceeded)

	result := mgr.Rollback(context.Background(), "run-1", journal)

	if !result.Complete() {
		t.Fatalf("Expected a complete rollback, got failures: %v", result.Failed)
	}
	want := []string{"revert C", "revert B", "revert A"}
	if len(runner.calls) != len(want) {
		t.Fatalf("Expected %d inverse invocations, got %d", len(want), len(runner.calls))
	}
	for i, call := range want {
		if runner.calls[i] != call {
			t.Errorf("Expected call %d to be %q, got %q", i, call, runner.calls[i])
		}
	}
	if len(result.Reversed) != 3 || result.Reversed[0] != "C" || result.Reversed[2] != "A" {
		t.Errorf("Expected reversed [C B A], got %v", result.Reversed)
	}
}

func TestRollbackManager_Rollback_BestEffortContinuesPastFailure(t *testing.T) {
	runner := &fakeRunner{respond: failCommands("revert", "B")}
	audit := &fakeAudit{}
	mgr := newTestRollbackManager(runner, audit)

	journal := NewJournal()
	journal.Append(commandOp("A"), OutcomeSucceeded)
	journal.Append(commandOp("B"), OutcomeSucceeded)
	journal.Append(commandOp("C"), OutcomeSucceeded)

	result := mgr.Rollback(context.Background(), "run-1", journal)

	if result.Complete() {
		t.Fatal("Expected an incomplete rollback")
	}
	if len(result.Failed) != 1 || result.Failed[0].OperationID != "B" {
		t.Errorf("Expected only B to fail, got %v", result.Failed)
	}
	// A's inverse still ran after B's failed.
	if len(result.Reversed) != 2 || result.Reversed[0] != "C" || result.Reversed[1] != "A" {
		t.Errorf("Expected [C A] reversed, got %v", result.Reversed)
	}
	if !strings.Contains(result.Summary(), "FAILED to reverse B") {
		t.Errorf("Expected the summary to name the failed reversal, got: %s", result.Summary())
	}
	if outcomes := audit.outcomes("B"); len(outcomes) != 1 || outcomes[0] != AuditRollbackFailed {
		t.Errorf("Expected rollback_failed audit for B, got %v", outcomes)
	}
}

func TestRollbackManager_Rollback_IrreversibleSkippedAndReported(t *testing.T) {
	runner := &fakeRunner{}
	audit := &fakeAudit{}
	mgr := newTestRollbackManager(runner, audit)

	journal := NewJournal()
	journal.Append(commandOp("A"), OutcomeSucceeded)
	journal.Append(irreversibleOp("R"), OutcomeSucceeded)

	result := mgr.Rollback(context.Background(), "run-1", journal)

	if !result.Complete() {
		t.Error("Irreversible operations must not count as rollback failures")
	}
	if len(result.Irreversible) != 1 || result.Irreversible[0] != "R" {
		t.Errorf("Expected R in the irreversible list, got %v", result.Irreversible)
	}
	for _, call := range runner.calls {
		if call == "revert R" {
			t.Error("Expected no inverse invocation for an irreversible operation")
		}
	}
	if outcomes := audit.outcomes("R"); len(outcomes) != 1 || outcomes[0] != AuditNotUndone {
		t.Errorf("Expected not_undone audit for R, got %v", outcomes)
	}
}

func TestRollbackManager_Rollback_EmptyJournal(t *testing.T) {
	runner := &fakeRunner{}
	mgr := newTestRollbackManager(runner, &fakeAudit{})

	result := mgr.Rollback(context.Background(), "run-1", NewJournal())

	if !result.Complete() {
		t.Error("Expected an empty journal to roll back trivially")
	}
	if runner.callCount() != 0 {
		t.Errorf("Expected no invocations for an empty journal, got %d", runner.callCount())
	}
}

func TestTransactionJournal_ConsumedTwicePanics(t *testing.T) {
	journal := NewJournal()
	journal.Append(commandOp("A"), OutcomeSucceeded)
	journal.consumeReversed()

	defer func() {
		if recover() == nil {
			t.Error("Expected second consumption to panic")
		}
	}()
	journal.consumeReversed()
}

func TestTransactionJournal_AppendAfterConsumePanics(t *testing.T) {
	journal := NewJournal()
	journal.Append(commandOp("A"), OutcomeSucceeded)
	journal.consumeReversed()

	defer func() {
		if recover() == nil {
			t.Error("Expected append after consumption to panic")
		}
	}()
	journal.Append(commandOp("B"), OutcomeSucceeded)
}
