package engine

import (
	"fmt"
	"strings"
	"time"
)

// SimulationStep is the dry-run rendering of one operation, structurally
// identical to the trace the executor would produce for it.
type SimulationStep struct {
	// OperationID identifies the operation.
	OperationID string `json:"operation_id"`

	// Kind is the operation's resource kind.
	Kind ResourceKind `json:"kind"`

	// Target is the resource identifier the operation would mutate.
	Target string `json:"target"`

	// Description is the operation's summary.
	Description string `json:"description"`

	// WouldDo renders the forward effect, with secrets masked.
	WouldDo string `json:"would_do"`

	// Irreversible marks operations rollback could not undo.
	Irreversible bool `json:"irreversible"`
}

// SimulationReport is the result of walking a plan without invoking any
// real effect. It is the default confirmation surface shown to the operator
// before real execution.
type SimulationReport struct {
	// PlanID identifies the simulated plan.
	PlanID string `json:"plan_id"`

	// Intent is the originating request.
	Intent Intent `json:"intent"`

	// Steps are the operations in the same order execution would use.
	Steps []SimulationStep `json:"steps"`

	// Expected declares the plan's side effects.
	Expected SideEffects `json:"expected"`

	// CredentialPreview shows the database credential that would be
	// generated. The password is a placeholder, never the real secret:
	// nothing is installed anywhere by a simulation.
	CredentialPreview string `json:"credential_preview,omitempty"`

	// SimulatedAt is when the walk happened.
	SimulatedAt time.Time `json:"simulated_at"`
}

// Simulator walks plans without any system access. It deliberately holds no
// CommandRunner or FileSystem: a simulation cannot mutate anything because
// it has nothing to mutate with.
type Simulator struct{}

// NewSimulator creates a dry-run simulator.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Simulate reports what each operation would do, in execution order. It
// invokes only description functions, never real effects.
func (s *Simulator) Simulate(plan *Plan) *SimulationReport {
	report := &SimulationReport{
		PlanID:      plan.ID,
		Intent:      plan.Intent,
		Expected:    plan.Expected,
		SimulatedAt: time.Now().UTC(),
		Steps:       make([]SimulationStep, 0, len(plan.Operations)),
	}

	for _, op := range plan.Operations {
		report.Steps = append(report.Steps, SimulationStep{
			OperationID:  op.ID,
			Kind:         op.Kind,
			Target:       op.Target,
			Description:  op.Description,
			WouldDo:      op.Forward.Describe(),
			Irreversible: op.Irreversible,
		})
	}

	if plan.Credential != nil {
		report.CredentialPreview = fmt.Sprintf("username %s, password %s",
			plan.Credential.Username, plan.Credential.Placeholder())
	}
	return report
}

// Render formats the report for terminal display.
func (r *SimulationReport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s (%s): %d operation(s)\n", r.PlanID, r.Intent.Kind, len(r.Steps))
	for i, step := range r.Steps {
		marker := ""
		if step.Irreversible {
			marker = " [irreversible]"
		}
		fmt.Fprintf(&b, "%2d. [%s] %s%s\n      would run: %s\n", i+1, step.Kind, step.Description, marker, step.WouldDo)
	}
	if r.CredentialPreview != "" {
		fmt.Fprintf(&b, "database credential (illustrative): %s\n", r.CredentialPreview)
	}
	return b.String()
}
