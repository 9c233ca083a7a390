package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lampctl/lampctl/pkg/config"
	"github.com/lampctl/lampctl/pkg/engine"
	"github.com/lampctl/lampctl/pkg/lockfile"
	"github.com/lampctl/lampctl/pkg/telemetry"
)

func testApp(t *testing.T) *app {
	t.Helper()
	a := &app{
		cfg:     config.Default(),
		metrics: telemetry.NewMetrics(),
	}
	a.cfg.Security.LockPath = filepath.Join(t.TempDir(), "run.lock")
	return a
}

func singleOpPlan() *engine.Plan {
	inverse := engine.RemovePathEffect("/var/www/test.local")
	return &engine.Plan{
		ID:     "plan-test",
		Intent: engine.Intent{Kind: engine.IntentInstallStack, PHPVersion: "8.1"},
		Operations: []engine.Operation{{
			ID:          "docroot",
			Kind:        engine.KindFile,
			Target:      "/var/www/test.local/web",
			Description: "create document root",
			Forward:     engine.MakeDirEffect("/var/www/test.local/web", 0o755, true),
			Inverse:     &inverse,
		}},
	}
}

func TestApp_AcquireLock_HeldLockIsConcurrencyError(t *testing.T) {
	a := testApp(t)

	held, err := lockfile.Acquire(a.cfg.Security.LockPath)
	if err != nil {
		t.Fatalf("Failed to pre-hold the lock: %v", err)
	}
	defer held.Release()

	err = a.acquireLock()
	if err == nil {
		t.Fatal("Expected acquisition against a held lock to fail")
	}
	if !engine.IsConcurrentRun(err) {
		t.Errorf("Expected a concurrency error, got: %v", err)
	}
	var perr *engine.ProvisionError
	if !errors.As(err, &perr) || perr.Code != engine.ErrCodeConcurrentRunDetected {
		t.Errorf("Expected code %s, got: %v", engine.ErrCodeConcurrentRunDetected, err)
	}
}

func TestApp_AcquireLock_FreeLock(t *testing.T) {
	a := testApp(t)

	if err := a.acquireLock(); err != nil {
		t.Fatalf("Expected acquisition to succeed, got: %v", err)
	}
	if a.lock == nil {
		t.Fatal("Expected the app to hold the lock")
	}

	a.close()
	if _, err := os.Stat(a.cfg.Security.LockPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("Expected close to release the lock file")
	}
}

func TestApp_RunPlan_DryRunTouchesNothing(t *testing.T) {
	a := testApp(t)

	// No executor is wired: a dry run must return before ever needing one.
	if err := a.runPlan(context.Background(), singleOpPlan(), true, false); err != nil {
		t.Fatalf("Expected a dry run to succeed, got: %v", err)
	}
	if _, err := os.Stat(a.cfg.Security.LockPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("Expected a dry run to never take the run lock")
	}
}

func TestApp_RunPlan_DryRunByDefault(t *testing.T) {
	a := testApp(t)
	a.cfg.Security.DryRunByDefault = true

	if err := a.runPlan(context.Background(), singleOpPlan(), false, false); err != nil {
		t.Fatalf("Expected the configured dry-run default to apply, got: %v", err)
	}
	if _, err := os.Stat(a.cfg.Security.LockPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("Expected the default dry run to never take the run lock")
	}
}
