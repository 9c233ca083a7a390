// Package engine implements the transactional provisioning core: it turns
// a high-level intent (install the LAMP stack, create a site) into an
// ordered plan of reversible-or-flagged-irreversible operations, previews
// the plan without side effects, executes it sequentially with a hard
// preflight gate and explicit operator confirmation, and restores prior
// state best-effort when an operation fails.
//
// The engine owns no system access of its own. All mutation flows through
// the CommandRunner and FileSystem capabilities, and every operation
// transition is reported to the AuditSink. One plan, one host, one run at a
// time: callers serialize invocations with the lockfile package.
//
// Lifecycle of a run:
//
//	Built -> Validated -> (Simulated | Executing)
//	Executing -> Completed
//	Executing -> RollingBack -> RolledBack | RollbackIncomplete
//
// Simulated, Completed, RolledBack and RollbackIncomplete are terminal; a
// dry-run never transitions to real execution automatically.
package engine
