package engine

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"time"
)

// Check is one named preflight check with its outcome and remediation.
type Check struct {
	// Name identifies the check.
	Name string `json:"name"`

	// Passed reports whether the check succeeded.
	Passed bool `json:"passed"`

	// Required marks checks that gate execution. All current checks are
	// required; the field exists so advisory checks can be added.
	Required bool `json:"required"`

	// Detail describes what was observed.
	Detail string `json:"detail,omitempty"`

	// Remediation tells the operator how to fix a failure.
	Remediation string `json:"remediation,omitempty"`
}

// ValidationReport is the cumulative result of all preflight checks.
type ValidationReport struct {
	// Checks lists every check that ran, passed or failed.
	Checks []Check `json:"checks"`
}

// OK reports whether no required check failed.
func (r *ValidationReport) OK() bool {
	return len(r.FailedRequired()) == 0
}

// FailedRequired returns the required checks that failed.
func (r *ValidationReport) FailedRequired() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if c.Required && !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Validator runs read-only preflight checks before any mutation is
// attempted. System probes are injected so checks are testable without a
// privileged host.
type Validator struct {
	settings Settings
	fs       FileSystem

	// EUID returns the effective user ID. Defaults to os.Geteuid via the
	// runner package's wiring; injected here for tests.
	EUID func() int

	// FreeDiskBytes reports free space on the filesystem containing path.
	FreeDiskBytes func(path string) (uint64, error)

	// LookPath resolves a tool on PATH.
	LookPath func(tool string) (string, error)

	// Dial opens a TCP connection, used for mirror reachability.
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// NewValidator creates a preflight validator with the given probes.
func NewValidator(settings Settings, fs FileSystem,
	euid func() int,
	freeDisk func(string) (uint64, error),
	lookPath func(string) (string, error),
) *Validator {
	return &Validator{
		settings:      settings,
		fs:            fs,
		EUID:          euid,
		FreeDiskBytes: freeDisk,
		LookPath:      lookPath,
		Dial:          net.DialTimeout,
	}
}

// requiredTools are the external commands the engine shells out to.
var requiredTools = []string{"apt-get", "systemctl", "mysql"}

// Validate runs every check and returns the cumulative report. Checks are
// independent: a failure never short-circuits the rest. No check mutates
// the system.
func (v *Validator) Validate(ctx context.Context, intent Intent) *ValidationReport {
	report := &ValidationReport{}

	report.Checks = append(report.Checks, v.checkPrivilege())
	report.Checks = append(report.Checks, v.checkDiskSpace())
	report.Checks = append(report.Checks, v.checkMirrorReachable(ctx))
	report.Checks = append(report.Checks, v.checkTools()...)

	if intent.Kind == IntentCreateSite {
		report.Checks = append(report.Checks, v.checkSiteCollision(intent.SiteName)...)
	}

	return report
}

func (v *Validator) checkPrivilege() Check {
	c := Check{Name: "privilege", Required: true}
	euid := v.EUID()
	if euid == 0 {
		c.Passed = true
		c.Detail = "running with effective UID 0"
	} else {
		c.Detail = fmt.Sprintf("effective UID is %d, system mutation requires root", euid)
		c.Remediation = "re-run under sudo"
	}
	return c
}

func (v *Validator) checkDiskSpace() Check {
	c := Check{Name: "disk-space", Required: true}
	free, err := v.FreeDiskBytes("/")
	if err != nil {
		c.Detail = fmt.Sprintf("could not determine free space: %v", err)
		c.Remediation = "verify the root filesystem is mounted and statable"
		return c
	}
	if free >= v.settings.MinFreeDiskBytes {
		c.Passed = true
		c.Detail = fmt.Sprintf("%d MiB free", free/(1<<20))
	} else {
		c.Detail = fmt.Sprintf("%d MiB free, need at least %d MiB", free/(1<<20), v.settings.MinFreeDiskBytes/(1<<20))
		c.Remediation = "free disk space before provisioning"
	}
	return c
}

func (v *Validator) checkMirrorReachable(ctx context.Context) Check {
	c := Check{Name: "mirror-reachable", Required: true}
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	conn, err := v.Dial("tcp", v.settings.MirrorHost, timeout)
	if err != nil {
		c.Detail = fmt.Sprintf("cannot reach %s: %v", v.settings.MirrorHost, err)
		c.Remediation = "check network connectivity and the configured mirror host"
		return c
	}
	_ = conn.Close()
	c.Passed = true
	c.Detail = v.settings.MirrorHost + " reachable"
	return c
}

func (v *Validator) checkTools() []Check {
	checks := make([]Check, 0, len(requiredTools))
	for _, tool := range requiredTools {
		c := Check{Name: "tool-" + tool, Required: true}
		if path, err := v.LookPath(tool); err == nil {
			c.Passed = true
			c.Detail = path
		} else {
			c.Detail = tool + " not found on PATH"
			c.Remediation = "install " + tool + " or adjust PATH"
		}
		checks = append(checks, c)
	}
	return checks
}

func (v *Validator) checkSiteCollision(siteName string) []Check {
	vhostPath := filepath.Join(v.settings.VhostsDir, siteName+".conf")
	docRoot := filepath.Join(v.settings.SitesDir, siteName)

	checks := make([]Check, 0, 2)
	for _, probe := range []struct {
		name string
		path string
		what string
	}{
		{"vhost-collision", vhostPath, "virtual host"},
		{"docroot-collision", docRoot, "document root"},
	} {
		c := Check{Name: probe.name, Required: true}
		exists, err := v.fs.Exists(probe.path)
		switch {
		case err != nil:
			c.Detail = fmt.Sprintf("cannot stat %s: %v", probe.path, err)
			c.Remediation = "verify filesystem permissions"
		case exists:
			c.Detail = fmt.Sprintf("%s for %q already exists at %s", probe.what, siteName, probe.path)
			c.Remediation = "choose another site name or remove the existing " + probe.what
		default:
			c.Passed = true
			c.Detail = probe.path + " is free"
		}
		checks = append(checks, c)
	}
	return checks
}
