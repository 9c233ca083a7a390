package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/lampctl/lampctl/pkg/config"
	"github.com/lampctl/lampctl/pkg/engine"
	"github.com/lampctl/lampctl/pkg/lockfile"
	"github.com/lampctl/lampctl/pkg/runner"
	"github.com/lampctl/lampctl/pkg/stores"
	"github.com/lampctl/lampctl/pkg/telemetry"
)

// app wires the engine's collaborators for one command invocation.
type app struct {
	cfg      config.Config
	settings engine.Settings
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	store    stores.Store
	planner  *engine.PlanBuilder
	executor *engine.Executor
	lock     *lockfile.Lock
}

// newApp loads configuration and builds the full collaborator graph.
// Persistence is optional: a store that cannot be opened degrades to
// in-memory-only audit with a warning, it never blocks provisioning.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := telemetry.NewLogger(telemetry.LoggerOptions{
		Level:  logLevel(cfg.Logging.Level),
		Format: logFormat(cfg.Logging.Format),
	})

	a := &app{
		cfg:      cfg,
		settings: cfg.EngineSettings(),
		log:      log,
		metrics:  telemetry.NewMetrics(),
	}

	cmdRunner := runner.NewLocal()
	fs := runner.NewOSFileSystem()
	actor := invokingUser()

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.Serve(addr); err != nil {
				log.Warn().Err(err).Str("addr", addr).Msg("metrics endpoint failed")
			}
		}()
	}

	if cfg.Store.Path != "" {
		store, err := openStore(ctx, cfg.Store.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Store.Path).Msg("journal store unavailable, continuing without persistence")
		} else {
			a.store = store
		}
	}

	var auditStore telemetry.AuditStore
	var recorder engine.JournalRecorder
	if a.store != nil {
		auditStore = a.store
		recorder = a.store
	}
	audit := telemetry.NewAuditLogger(log, auditStore, a.metrics)

	validator := engine.NewValidator(a.settings, fs, runner.EUID, runner.FreeDiskBytes, runner.LookPath)
	rollback := engine.NewRollbackManager(cmdRunner, fs, audit, a.settings.OperationTimeout, actor)

	a.planner = engine.NewPlanBuilder(a.settings, cmdRunner)
	a.executor = engine.NewExecutor(cmdRunner, fs, validator, rollback, audit, recorder,
		a.settings.OperationTimeout, actor)
	return a, nil
}

func openStore(ctx context.Context, path string) (stores.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	store, err := stores.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// acquireLock serializes runs on this host.
func (a *app) acquireLock() error {
	lock, err := lockfile.Acquire(a.cfg.Security.LockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrHeld) {
			return engine.NewConcurrencyError("another lampctl run is in progress", err).
				WithCode(engine.ErrCodeConcurrentRunDetected)
		}
		return err
	}
	a.lock = lock
	return nil
}

func (a *app) close() {
	if a.lock != nil {
		_ = a.lock.Release()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// runPlan is the shared simulate/confirm/execute path for both intents.
func (a *app) runPlan(ctx context.Context, plan *engine.Plan, dryRun, autoApprove bool) error {
	start := time.Now()
	report := engine.NewSimulator().Simulate(plan)
	printSimulation(report)

	if dryRun || (a.cfg.Security.DryRunByDefault && !autoApprove) {
		a.metrics.ObserveRun(engine.RunStateSimulated, time.Since(start))
		color.Cyan("dry run: no changes were made")
		return nil
	}

	if err := a.acquireLock(); err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	confirm := autoApprove
	if !confirm {
		confirm = promptConfirmation()
	}
	if !confirm {
		fmt.Println("Operation cancelled.")
		return &exitError{code: exitFailure, err: nil}
	}

	result, execErr := a.executor.Execute(ctx, plan, confirm)
	if result != nil {
		a.metrics.ObserveRun(result.State, time.Since(start))
		printResult(result, plan)
	}
	if execErr != nil {
		code := exitFailure
		if result != nil {
			code = exitCodeFor(result.State)
		}
		return &exitError{code: code, err: execErr}
	}
	return nil
}

func promptConfirmation() bool {
	fmt.Print("\nProceed? [y/N]: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func printSimulation(report *engine.SimulationReport) {
	color.New(color.Bold).Printf("Plan (%s): %d operation(s)\n", report.Intent.Kind, len(report.Steps))
	for i, step := range report.Steps {
		marker := ""
		if step.Irreversible {
			marker = color.YellowString(" [irreversible]")
		}
		fmt.Printf("%2d. [%s] %s%s\n", i+1, step.Kind, step.Description, marker)
		fmt.Printf("      would run: %s\n", step.WouldDo)
	}
	if len(report.Expected.Files) > 0 {
		fmt.Printf("files: %s\n", strings.Join(report.Expected.Files, ", "))
	}
	if len(report.Expected.Databases) > 0 {
		fmt.Printf("database: %s (user %s)\n",
			strings.Join(report.Expected.Databases, ", "), strings.Join(report.Expected.Users, ", "))
	}
	if report.CredentialPreview != "" {
		fmt.Printf("database credential (illustrative): %s\n", report.CredentialPreview)
	}
}

func printResult(result *engine.ExecutionResult, plan *engine.Plan) {
	switch result.State {
	case engine.RunStateCompleted:
		color.Green("\n✔ %s completed (%d operation(s) applied)", plan.Intent.Kind, len(result.Journal))
		if plan.Credential != nil {
			revealCredential(plan)
		}
	case engine.RunStateRolledBack:
		color.Red("\n✘ operation %s failed; all applied changes were rolled back", result.FailedOperation)
		fmt.Println(result.Rollback.Summary())
	case engine.RunStateRollbackIncomplete:
		color.New(color.FgRed, color.Bold).Println("\n✘ ROLLBACK INCOMPLETE: manual remediation required")
		fmt.Println(result.Rollback.Summary())
	default:
		if result.Validation != nil && !result.Validation.OK() {
			color.Red("\npreflight validation failed:")
			for _, c := range result.Validation.FailedRequired() {
				fmt.Printf("  - %s: %s\n", c.Name, c.Detail)
				if c.Remediation != "" {
					fmt.Printf("    remediation: %s\n", c.Remediation)
				}
			}
		}
	}
}

// revealCredential prints the generated database credential exactly once.
// It is not persisted anywhere else in plaintext.
func revealCredential(plan *engine.Plan) {
	password, err := plan.Credential.Password()
	if err != nil {
		color.Red("could not reveal database credential: %v", err)
		return
	}
	fmt.Println("\n--- Database credentials (shown once, store them now) ---")
	fmt.Printf("  Database: %s\n", strings.Join(plan.Expected.Databases, ", "))
	fmt.Printf("  Username: %s\n", plan.Credential.Username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println("---------------------------------------------------------")
}

// invokingUser resolves the operator for audit entries, preferring the
// sudo-invoking user over root.
func invokingUser() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		return sudoUser
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
