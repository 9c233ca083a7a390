// Package lockfile serializes provisioning runs on a host. Two executors
// mutating the same package and service state would interleave; the lock
// makes the second run fail fast instead.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("lockfile: already held")

// Lock is an exclusive pid-stamped lock file.
type Lock struct {
	path string
}

// Acquire takes the lock or returns ErrHeld. A lock left behind by a dead
// process (its pid no longer exists) is broken and re-acquired.
func Acquire(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("lockfile: failed to write %s: %w", path, errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("lockfile: failed to create %s: %w", path, err)
		}
		if !holderAlive(path) {
			_ = os.Remove(path)
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}
	return nil, fmt.Errorf("%w: %s", ErrHeld, path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("lockfile: failed to remove %s: %w", l.path, err)
	}
	return nil
}

// holderAlive reports whether the pid recorded in the lock file still runs.
// Unreadable or malformed lock files are treated as held, erring on the
// side of not breaking a live lock.
func holderAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
