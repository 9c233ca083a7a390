// Package runner provides the local implementations of the engine's system
// capabilities: a CommandRunner backed by os/exec and a FileSystem backed
// by the os package, plus the probes the preflight validator injects.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"github.com/lampctl/lampctl/pkg/engine"
)

// Local runs commands on the host the process runs on.
type Local struct{}

// NewLocal creates a local command runner.
func NewLocal() *Local {
	return &Local{}
}

// Run executes the command and captures its output. A nonzero exit code is
// reported through the result, not as an error; only failures to start or
// wait on the process (including context cancellation) return an error.
func (l *Local) Run(ctx context.Context, name string, args ...string) (engine.RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := engine.RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, err
	}
	return result, nil
}

// OSFileSystem applies file effects on the real filesystem.
type OSFileSystem struct{}

// NewOSFileSystem creates a filesystem bound to the host.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// WriteFile writes data to path with the given permissions.
func (OSFileSystem) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// MkdirAll creates path and any missing parents.
func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// RemoveAll removes path and anything below it.
func (OSFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Exists reports whether path exists.
func (OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// EUID returns the effective user ID, for the validator's privilege check.
func EUID() int {
	return os.Geteuid()
}

// FreeDiskBytes reports free space on the filesystem containing path.
func FreeDiskBytes(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// LookPath resolves a tool on PATH.
func LookPath(tool string) (string, error) {
	return exec.LookPath(tool)
}
