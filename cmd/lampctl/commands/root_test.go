package commands

import (
	"testing"

	"github.com/lampctl/lampctl/pkg/engine"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		state engine.RunState
		want  int
	}{
		{engine.RunStateCompleted, exitOK},
		{engine.RunStateSimulated, exitOK},
		{engine.RunStateRolledBack, exitRolledBack},
		{engine.RunStateRollbackIncomplete, exitRollbackIncomplete},
		{engine.RunStateBuilt, exitFailure},
		{engine.RunStateExecuting, exitFailure},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.state); got != c.want {
			t.Errorf("Expected exit code %d for state %s, got %d", c.want, c.state, got)
		}
	}
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCommand("dev", "none", "now")

	for _, name := range []string{"install-stack", "create-site", "journal"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected subcommand %s to be registered", name)
		}
	}
}

func TestInvokingUser_PrefersSudoUser(t *testing.T) {
	t.Setenv("SUDO_USER", "alice")
	if got := invokingUser(); got != "alice" {
		t.Errorf("Expected alice, got %s", got)
	}
}

func TestLogLevelAndFormatFlags(t *testing.T) {
	verbose, jsonOutput = false, false
	if got := logLevel("info"); got != "info" {
		t.Errorf("Expected configured level, got %s", got)
	}
	if got := logFormat("console"); got != "console" {
		t.Errorf("Expected configured format, got %s", got)
	}

	verbose, jsonOutput = true, true
	defer func() { verbose, jsonOutput = false, false }()
	if got := logLevel("info"); got != "debug" {
		t.Errorf("Expected verbose to force debug, got %s", got)
	}
	if got := logFormat("console"); got != "json" {
		t.Errorf("Expected --json to force json logs, got %s", got)
	}
}
