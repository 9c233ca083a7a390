package engine

import (
	"context"
	"io/fs"
	"time"
)

// RunResult is the outcome of an external command invocation.
type RunResult struct {
	// ExitCode is the process exit code. Zero means success.
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`
}

// CommandRunner shells out to the package manager, service manager and
// database client. The executor treats a nonzero exit code as operation
// failure. Implementations must honor context cancellation and deadlines.
type CommandRunner interface {
	// Run executes name with args and returns the captured result. The
	// returned error covers failures to start or wait on the process; a
	// nonzero exit code is reported through RunResult, not error.
	Run(ctx context.Context, name string, args ...string) (RunResult, error)
}

// FileSystem is the capability used by file effects and existence probes.
// Injected so the simulator and tests can run without touching the host.
type FileSystem interface {
	// WriteFile writes data to path with the given permissions.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string, perm fs.FileMode) error

	// RemoveAll removes path and anything below it.
	RemoveAll(path string) error

	// Exists reports whether path exists.
	Exists(path string) (bool, error)
}

// AuditOutcome is the transition recorded for an operation in the audit trail.
type AuditOutcome string

const (
	// AuditAttempted is recorded before a forward effect is applied.
	AuditAttempted AuditOutcome = "attempted"

	// AuditCompleted is recorded after a forward effect succeeds.
	AuditCompleted AuditOutcome = "completed"

	// AuditFailed is recorded when a forward effect fails.
	AuditFailed AuditOutcome = "failed"

	// AuditRolledBack is recorded when an inverse effect succeeds.
	AuditRolledBack AuditOutcome = "rolled_back"

	// AuditRollbackFailed is recorded when an inverse effect fails.
	AuditRollbackFailed AuditOutcome = "rollback_failed"

	// AuditNotUndone is recorded for irreversible operations during rollback.
	AuditNotUndone AuditOutcome = "not_undone"
)

// AuditEvent is one structured record of an operation transition.
type AuditEvent struct {
	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`

	// RunID identifies the executor run.
	RunID string `json:"run_id"`

	// OperationID identifies the operation within its plan.
	OperationID string `json:"operation_id"`

	// Kind is the operation's resource kind.
	Kind ResourceKind `json:"kind"`

	// Target is the mutated resource identifier.
	Target string `json:"target"`

	// Outcome is the recorded transition.
	Outcome AuditOutcome `json:"outcome"`

	// Actor is the invoking user, when known.
	Actor string `json:"actor,omitempty"`

	// Detail carries the failure cause or other context.
	Detail string `json:"detail,omitempty"`
}

// AuditSink receives one event per operation transition. Implementations
// must not fail the run: recording problems are their own concern.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

// Settings are the stack parameters consulted at plan-build and validation
// time. They come from the configuration source and are read-only here.
type Settings struct {
	// SitesDir is the base directory for site document roots.
	SitesDir string

	// VhostsDir is where Apache virtual-host files are written.
	VhostsDir string

	// DocRootSubdir is the subdirectory inside a site's directory that the
	// virtual host serves (frameworks conventionally use "web").
	DocRootSubdir string

	// SupportedPHPVersions lists installable interpreter versions.
	SupportedPHPVersions []string

	// WebServerService is the service unit to reload or restart.
	WebServerService string

	// DatabaseService is the database service unit.
	DatabaseService string

	// StackPackages are the packages (besides PHP) the stack requires.
	StackPackages []string

	// PHPPackages lists package name templates expanded with the version
	// (e.g. "php%s", "php%s-mysql").
	PHPPackages []string

	// DatabaseCharset and DatabaseCollation apply to created schemas.
	DatabaseCharset   string
	DatabaseCollation string

	// DatabaseRootPassword authenticates the database client when socket
	// auth is unavailable. Comes from the environment, never the YAML file.
	DatabaseRootPassword string

	// MirrorHost is the package mirror checked for reachability, host:port.
	MirrorHost string

	// MinFreeDiskBytes is the preflight free-space floor.
	MinFreeDiskBytes uint64

	// OperationTimeout bounds each forward and inverse effect.
	OperationTimeout time.Duration
}
