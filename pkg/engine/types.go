package engine

import (
	"io/fs"
	"time"
)

// ResourceKind identifies the kind of system resource an operation mutates.
// The set is closed: forward and inverse action implementations are selected
// by kind rather than open-ended polymorphism.
type ResourceKind string

const (
	// KindPackage is an operating-system package mutation (apt).
	KindPackage ResourceKind = "package"

	// KindFile is a filesystem mutation (directory or config file).
	KindFile ResourceKind = "file"

	// KindService is a service-manager mutation (systemctl).
	KindService ResourceKind = "service"

	// KindDatabase is a database-server mutation (mysql client).
	KindDatabase ResourceKind = "database"
)

// Validate checks that the resource kind is one of the known values.
func (k ResourceKind) Validate() error {
	switch k {
	case KindPackage, KindFile, KindService, KindDatabase:
		return nil
	}
	return NewOperationError("unknown resource kind: "+string(k), nil)
}

// EffectType selects how an Effect is applied.
type EffectType string

const (
	// EffectRunCommand runs an external command through the CommandRunner.
	EffectRunCommand EffectType = "run-command"

	// EffectWriteFile writes Content to Path through the FileSystem.
	EffectWriteFile EffectType = "write-file"

	// EffectMakeDir creates Path (and parents) through the FileSystem.
	EffectMakeDir EffectType = "make-dir"

	// EffectRemovePath removes Path through the FileSystem.
	EffectRemovePath EffectType = "remove-path"
)

// Effect is the executable description of a single system mutation. Effects
// are plain data built by pure functions; they are applied by the Executor
// (or Rollback Manager) through the injected CommandRunner and FileSystem,
// never at construction time.
type Effect struct {
	// Type selects the application mechanism.
	Type EffectType `json:"type"`

	// Command and Args are used by run-command effects.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// Path, Content and Mode are used by filesystem effects.
	Path    string      `json:"path,omitempty"`
	Content []byte      `json:"content,omitempty"`
	Mode    fs.FileMode `json:"mode,omitempty"`

	// GuardPath, when set, makes application fail with a collision error if
	// the path already exists. Used by non-idempotent file and directory
	// effects so an existing resource is reported, never overwritten.
	GuardPath string `json:"guard_path,omitempty"`

	// Redacted args (by index) are masked in descriptions and audit events.
	// Used for database effects whose statements embed a credential.
	Redacted []int `json:"redacted,omitempty"`
}

// Operation is the atomic unit of work in a plan: a described forward effect
// with an optional inverse effect, tagged with a resource kind.
type Operation struct {
	// ID is unique within the plan.
	ID string `json:"id"`

	// Kind is the resource kind this operation mutates.
	Kind ResourceKind `json:"kind"`

	// Target is the mutated resource identifier (package name, path,
	// service name, database name).
	Target string `json:"target"`

	// Description is the human-readable summary shown in dry-run and audit.
	Description string `json:"description"`

	// Forward is the effect applied during execution.
	Forward Effect `json:"forward"`

	// Inverse is the effect applied during rollback. Nil means the operation
	// cannot be programmatically undone.
	Inverse *Effect `json:"inverse,omitempty"`

	// Irreversible must be true exactly when Inverse is nil. The Rollback
	// Manager surfaces irreversible operations instead of silently skipping.
	Irreversible bool `json:"irreversible"`

	// Idempotent marks operations whose forward effect is safe to re-run
	// (package installs). File writes and database creates are not.
	Idempotent bool `json:"idempotent"`

	// Timeout bounds the forward and inverse effects. Zero means the
	// executor default applies.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Validate checks the operation's internal invariants.
func (o *Operation) Validate() error {
	if o.ID == "" {
		return NewOperationError("operation has empty ID", nil)
	}
	if err := o.Kind.Validate(); err != nil {
		return err
	}
	if (o.Inverse == nil) != o.Irreversible {
		return NewOperationError("operation irreversible flag does not match inverse presence", nil).WithOperation(o.ID)
	}
	return nil
}

// IntentKind identifies the high-level operator request that seeds a plan.
type IntentKind string

const (
	// IntentInstallStack provisions the full Apache + MariaDB + PHP stack.
	IntentInstallStack IntentKind = "install-stack"

	// IntentCreateSite provisions a virtual host and optional database.
	IntentCreateSite IntentKind = "create-site"
)

// Intent is the operator request a plan realizes.
type Intent struct {
	// Kind is the request type.
	Kind IntentKind `json:"kind"`

	// PHPVersion is the interpreter version to install or bind.
	PHPVersion string `json:"php_version"`

	// SiteName is the site domain for create-site intents.
	SiteName string `json:"site_name,omitempty"`

	// WithDatabase requests a database, user and grant for create-site.
	WithDatabase bool `json:"with_database,omitempty"`

	// AutoProvision allows create-site to prepend stack installation
	// operations when the stack is absent, instead of failing.
	AutoProvision bool `json:"auto_provision,omitempty"`
}

// SideEffects declares what a plan is expected to leave behind, for dry-run
// reporting and post-hoc verification.
type SideEffects struct {
	// Files are paths created (directories and config files).
	Files []string `json:"files,omitempty"`

	// Packages are packages expected to be present.
	Packages []string `json:"packages,omitempty"`

	// Services are services expected to be running.
	Services []string `json:"services,omitempty"`

	// Databases are database schemas expected to exist.
	Databases []string `json:"databases,omitempty"`

	// Users are database users expected to exist.
	Users []string `json:"users,omitempty"`
}

// Plan is an ordered sequence of operations realizing one intent. A plan is
// built fresh per invocation and never mutated once the simulator or
// executor begins consuming it.
type Plan struct {
	// ID is the unique plan identifier.
	ID string `json:"id"`

	// Intent is the originating request.
	Intent Intent `json:"intent"`

	// Operations is the execution order; a valid topological order of the
	// intent's dependency graph.
	Operations []Operation `json:"operations"`

	// Expected declares the plan's expected side effects.
	Expected SideEffects `json:"expected"`

	// Credential is the database credential generated at plan-build time for
	// create-site intents with a database. Nil otherwise.
	Credential *Credential `json:"-"`

	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
}

// Operation returns the operation with the given ID, or nil.
func (p *Plan) Operation(id string) *Operation {
	for i := range p.Operations {
		if p.Operations[i].ID == id {
			return &p.Operations[i]
		}
	}
	return nil
}

// RunState is the lifecycle state of a single plan run.
type RunState string

const (
	// RunStateBuilt means the plan was constructed but not yet validated.
	RunStateBuilt RunState = "built"

	// RunStateValidated means preflight checks passed.
	RunStateValidated RunState = "validated"

	// RunStateSimulated means a dry-run completed. Terminal: a dry-run never
	// transitions to real execution automatically.
	RunStateSimulated RunState = "simulated"

	// RunStateExecuting means real execution is in progress.
	RunStateExecuting RunState = "executing"

	// RunStateCompleted means every operation applied successfully. Terminal.
	RunStateCompleted RunState = "completed"

	// RunStateRollingBack means a failure occurred and reversal is in progress.
	RunStateRollingBack RunState = "rolling-back"

	// RunStateRolledBack means reversal fully restored prior state. Terminal.
	RunStateRolledBack RunState = "rolled-back"

	// RunStateRollbackIncomplete means best-effort reversal left the system
	// needing manual remediation. Terminal.
	RunStateRollbackIncomplete RunState = "rollback-incomplete"
)

// IsTerminal reports whether the state ends a run.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateSimulated, RunStateCompleted, RunStateRolledBack, RunStateRollbackIncomplete:
		return true
	}
	return false
}

// Outcome records how a single operation attempt ended.
type Outcome string

const (
	// OutcomeSucceeded means the forward effect applied.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeAlreadySatisfied means an idempotent forward effect found the
	// resource already in the desired state. Counts as success.
	OutcomeAlreadySatisfied Outcome = "already-satisfied"

	// OutcomeFailed means the forward effect failed or timed out.
	OutcomeFailed Outcome = "failed"
)

// JournalEntry is one record of an executed operation.
type JournalEntry struct {
	// Operation is the executed operation.
	Operation Operation `json:"operation"`

	// Outcome is how the attempt ended.
	Outcome Outcome `json:"outcome"`

	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`
}

// TransactionJournal is the ordered record of operations applied during one
// executor run. Entries are appended strictly in execution order; on
// rollback the journal is consumed from its tail backward exactly once.
type TransactionJournal struct {
	entries  []JournalEntry
	consumed bool
}

// NewJournal creates an empty transaction journal.
func NewJournal() *TransactionJournal {
	return &TransactionJournal{}
}

// Append records an executed operation. Appending after the journal has been
// consumed by rollback is a programming error and panics.
func (j *TransactionJournal) Append(op Operation, outcome Outcome) {
	if j.consumed {
		panic("engine: append to consumed transaction journal")
	}
	j.entries = append(j.entries, JournalEntry{
		Operation: op,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	})
}

// Entries returns the journal entries in execution order.
func (j *TransactionJournal) Entries() []JournalEntry {
	out := make([]JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of recorded entries.
func (j *TransactionJournal) Len() int {
	return len(j.entries)
}

// consumeReversed marks the journal consumed and returns its entries in
// reverse chronological order. It may be called exactly once.
func (j *TransactionJournal) consumeReversed() []JournalEntry {
	if j.consumed {
		panic("engine: transaction journal consumed twice")
	}
	j.consumed = true
	out := make([]JournalEntry, len(j.entries))
	for i, e := range j.entries {
		out[len(j.entries)-1-i] = e
	}
	return out
}
