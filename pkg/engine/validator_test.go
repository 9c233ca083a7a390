package engine

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestValidator_Validate_AllChecksPass(t *testing.T) {
	v := passingValidator(testSettings(), newFakeFS())

	report := v.Validate(context.Background(), Intent{Kind: IntentInstallStack, PHPVersion: "8.1"})

	if !report.OK() {
		t.Fatalf("Expected all checks to pass, failed: %v", report.FailedRequired())
	}
	// privilege, disk-space, mirror-reachable, three tools.
	if len(report.Checks) != 6 {
		t.Errorf("Expected 6 checks for install-stack, got %d", len(report.Checks))
	}
}

func TestValidator_Validate_NotRoot(t *testing.T) {
	v := passingValidator(testSettings(), newFakeFS())
	v.EUID = func() int { return 1000 }

	report := v.Validate(context.Background(), Intent{Kind: IntentInstallStack, PHPVersion: "8.1"})

	if report.OK() {
		t.Fatal("Expected the privilege check to fail")
	}
	failed := report.FailedRequired()
	if len(failed) != 1 || failed[0].Name != "privilege" {
		t.Errorf("Expected only the privilege check to fail, got %v", failed)
	}
	if failed[0].Remediation == "" {
		t.Error("Expected remediation advice for the privilege failure")
	}
}

func TestValidator_Validate_InsufficientDisk(t *testing.T) {
	v := passingValidator(testSettings(), newFakeFS())
	v.FreeDiskBytes = func(string) (uint64, error) { return 1 << 20, nil }

	report := v.Validate(context.Background(), Intent{Kind: IntentInstallStack, PHPVersion: "8.1"})

	failed := report.FailedRequired()
	if len(failed) != 1 || failed[0].Name != "disk-space" {
		t.Errorf("Expected only the disk-space check to fail, got %v", failed)
	}
}

func TestValidator_Validate_MirrorUnreachable(t *testing.T) {
	v := passingValidator(testSettings(), newFakeFS())
	v.Dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	report := v.Validate(context.Background(), Intent{Kind: IntentInstallStack, PHPVersion: "8.1"})

	failed := report.FailedRequired()
	if len(failed) != 1 || failed[0].Name != "mirror-reachable" {
		t.Errorf("Expected only the mirror check to fail, got %v", failed)
	}
}

func TestValidator_Validate_MissingTool(t *testing.T) {
	v := passingValidator(testSettings(), newFakeFS())
	v.LookPath = func(tool string) (string, error) {
		if tool == "mysql" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + tool, nil
	}

	report := v.Validate(context.Background(), Intent{Kind: IntentInstallStack, PHPVersion: "8.1"})

	failed := report.FailedRequired()
	if len(failed) != 1 || failed[0].Name != "tool-mysql" {
		t.Errorf("Expected only tool-mysql to fail, got %v", failed)
	}
}

func TestValidator_Validate_SiteCollision(t *testing.T) {
	fsys := newFakeFS("/etc/apache2/sites-available/test.local.conf")
	v := passingValidator(testSettings(), fsys)

	report := v.Validate(context.Background(), Intent{
		Kind:       IntentCreateSite,
		SiteName:   "test.local",
		PHPVersion: "8.1",
	})

	failed := report.FailedRequired()
	if len(failed) != 1 || failed[0].Name != "vhost-collision" {
		t.Errorf("Expected only the vhost collision check to fail, got %v", failed)
	}
}

func TestValidator_Validate_InstallStackSkipsCollisionChecks(t *testing.T) {
	// Existing paths that would collide for a site must not fail install-stack.
	fsys := newFakeFS("/etc/apache2/sites-available/test.local.conf", "/var/www/test.local")
	v := passingValidator(testSettings(), fsys)

	report := v.Validate(context.Background(), Intent{Kind: IntentInstallStack, PHPVersion: "8.1"})

	if !report.OK() {
		t.Errorf("Expected install-stack to pass, failed: %v", report.FailedRequired())
	}
}

func TestValidator_Validate_CumulativeReporting(t *testing.T) {
	fsys := newFakeFS("/var/www/test.local")
	v := passingValidator(testSettings(), fsys)
	v.EUID = func() int { return 1000 }
	v.FreeDiskBytes = func(string) (uint64, error) { return 0, nil }

	report := v.Validate(context.Background(), Intent{
		Kind:       IntentCreateSite,
		SiteName:   "test.local",
		PHPVersion: "8.1",
	})

	// One failure never short-circuits the remaining checks.
	failed := report.FailedRequired()
	if len(failed) != 3 {
		t.Fatalf("Expected 3 failures reported together, got %d: %v", len(failed), failed)
	}
	names := map[string]bool{}
	for _, c := range failed {
		names[c.Name] = true
	}
	for _, want := range []string{"privilege", "disk-space", "docroot-collision"} {
		if !names[want] {
			t.Errorf("Expected %s among the failures, got %v", want, names)
		}
	}
}
