package engine

import (
	"context"
	"errors"
	"fmt"
)

// effectApplier applies effects through the injected capabilities. It is
// shared by the executor (forward effects) and the rollback manager
// (inverse effects).
type effectApplier struct {
	runner CommandRunner
	fs     FileSystem
}

// apply runs one effect. For guarded effects on an existing path,
// idempotent operations report already-satisfied while non-idempotent ones
// report a collision instead of silently overwriting.
func (a *effectApplier) apply(ctx context.Context, e Effect, idempotent bool) (Outcome, error) {
	if e.GuardPath != "" {
		exists, err := a.fs.Exists(e.GuardPath)
		if err != nil {
			return OutcomeFailed, NewOperationError(fmt.Sprintf("cannot stat %s", e.GuardPath), err)
		}
		if exists {
			if idempotent {
				return OutcomeAlreadySatisfied, nil
			}
			return OutcomeFailed, NewOperationError(
				fmt.Sprintf("%s already exists, refusing to overwrite", e.GuardPath), nil).
				WithCode(ErrCodeCollision)
		}
	}

	switch e.Type {
	case EffectRunCommand:
		res, err := a.runner.Run(ctx, e.Command, e.Args...)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// A deadline is a timeout; an operator interrupt is a plain
				// operation failure.
				perr := NewOperationError("command interrupted", ctxErr)
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					perr = perr.WithCode(ErrCodeOperationTimeout)
				}
				return OutcomeFailed, perr
			}
			return OutcomeFailed, NewOperationError("command failed to run", err)
		}
		if res.ExitCode != 0 {
			return OutcomeFailed, NewOperationError(
				fmt.Sprintf("%s exited %d: %s", e.Command, res.ExitCode, firstLine(res.Stderr)), nil)
		}
		return OutcomeSucceeded, nil

	case EffectWriteFile:
		if err := a.fs.WriteFile(e.Path, e.Content, e.Mode); err != nil {
			return OutcomeFailed, NewOperationError("write failed", err)
		}
		return OutcomeSucceeded, nil

	case EffectMakeDir:
		if err := a.fs.MkdirAll(e.Path, e.Mode); err != nil {
			return OutcomeFailed, NewOperationError("mkdir failed", err)
		}
		return OutcomeSucceeded, nil

	case EffectRemovePath:
		if err := a.fs.RemoveAll(e.Path); err != nil {
			return OutcomeFailed, NewOperationError("remove failed", err)
		}
		return OutcomeSucceeded, nil
	}

	return OutcomeFailed, NewOperationError(fmt.Sprintf("unknown effect type %q", e.Type), nil)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
