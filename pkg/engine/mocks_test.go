package engine

import (
	"context"
	"io/fs"
	"net"
	"strings"
	"sync"
	"time"
)

// fakeRunner records every command invocation and answers through an
// injectable respond function. The default response is a clean exit.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	respond func(ctx context.Context, name string, args []string) (RunResult, error)
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	r.mu.Unlock()

	if r.respond != nil {
		return r.respond(ctx, name, args)
	}
	return RunResult{ExitCode: 0}, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRunner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// installedResponder answers dpkg-query probes from a fixed package set and
// succeeds for everything else.
func installedResponder(installed ...string) func(context.Context, string, []string) (RunResult, error) {
	set := make(map[string]bool, len(installed))
	for _, pkg := range installed {
		set[pkg] = true
	}
	return func(ctx context.Context, name string, args []string) (RunResult, error) {
		if name != "dpkg-query" {
			return RunResult{ExitCode: 0}, nil
		}
		pkg := args[len(args)-1]
		if set[pkg] {
			return RunResult{ExitCode: 0, Stdout: "install ok installed"}, nil
		}
		return RunResult{ExitCode: 1, Stderr: "no packages found matching " + pkg}, nil
	}
}

// fakeFS tracks existing paths in memory and records every mutation.
type fakeFS struct {
	existing map[string]bool
	writes   []string
	mkdirs   []string
	removes  []string
}

func newFakeFS(existing ...string) *fakeFS {
	f := &fakeFS{existing: make(map[string]bool)}
	for _, p := range existing {
		f.existing[p] = true
	}
	return f
}

func (f *fakeFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	f.writes = append(f.writes, path)
	f.existing[path] = true
	return nil
}

func (f *fakeFS) MkdirAll(path string, perm fs.FileMode) error {
	f.mkdirs = append(f.mkdirs, path)
	f.existing[path] = true
	return nil
}

func (f *fakeFS) RemoveAll(path string) error {
	f.removes = append(f.removes, path)
	delete(f.existing, path)
	return nil
}

func (f *fakeFS) Exists(path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeFS) mutationCount() int {
	return len(f.writes) + len(f.mkdirs) + len(f.removes)
}

// fakeAudit collects audit events in order.
type fakeAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (a *fakeAudit) Record(ctx context.Context, event AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *fakeAudit) outcomes(id string) []AuditOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditOutcome
	for _, e := range a.events {
		if e.OperationID == id {
			out = append(out, e.Outcome)
		}
	}
	return out
}

// fakeRecorder collects persisted run lifecycle calls.
type fakeRecorder struct {
	begunRuns  []string
	entries    []JournalEntry
	finalState RunState
	finished   bool
}

func (r *fakeRecorder) BeginRun(ctx context.Context, runID, planID string, intent Intent, startedAt time.Time) error {
	r.begunRuns = append(r.begunRuns, runID)
	return nil
}

func (r *fakeRecorder) RecordEntry(ctx context.Context, runID string, entry JournalEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRecorder) FinishRun(ctx context.Context, runID string, state RunState, detail string, completedAt time.Time) error {
	r.finalState = state
	r.finished = true
	return nil
}

func testSettings() Settings {
	return Settings{
		SitesDir:             "/var/www",
		VhostsDir:            "/etc/apache2/sites-available",
		DocRootSubdir:        "web",
		SupportedPHPVersions: []string{"7.4", "8.1", "8.2", "8.3"},
		WebServerService:     "apache2",
		DatabaseService:      "mariadb",
		StackPackages:        []string{"apache2", "mariadb-server", "mariadb-client"},
		PHPPackages:          []string{"php%s", "php%s-fpm", "php%s-mysql"},
		DatabaseCharset:      "utf8mb4",
		DatabaseCollation:    "utf8mb4_unicode_ci",
		MirrorHost:           "deb.debian.org:80",
		MinFreeDiskBytes:     1 << 30,
		OperationTimeout:     time.Minute,
	}
}

// passingValidator builds a validator whose probes all succeed without
// touching the host.
func passingValidator(settings Settings, fsys FileSystem) *Validator {
	v := NewValidator(settings, fsys,
		func() int { return 0 },
		func(string) (uint64, error) { return 100 << 30, nil },
		func(tool string) (string, error) { return "/usr/bin/" + tool, nil },
	)
	v.Dial = pipeDial
	return v
}

func pipeDial(network, address string, timeout time.Duration) (net.Conn, error) {
	client, server := net.Pipe()
	go func() { _ = server.Close() }()
	return client, nil
}
