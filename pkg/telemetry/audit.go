package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lampctl/lampctl/pkg/engine"
)

// AuditStore persists audit events for post-hoc inspection.
type AuditStore interface {
	AppendAudit(ctx context.Context, event engine.AuditEvent) error
}

// AuditLogger implements engine.AuditSink: every operation transition is
// logged structurally and, when a store is configured, persisted. It also
// feeds the operation metrics.
type AuditLogger struct {
	log     zerolog.Logger
	store   AuditStore
	metrics *Metrics
}

// NewAuditLogger creates an audit sink. store and metrics may be nil.
func NewAuditLogger(log zerolog.Logger, store AuditStore, metrics *Metrics) *AuditLogger {
	return &AuditLogger{
		log:     ComponentLogger(log, "audit"),
		store:   store,
		metrics: metrics,
	}
}

// Record logs one operation transition. Recording never fails the run:
// persistence errors are logged and swallowed here.
func (a *AuditLogger) Record(ctx context.Context, event engine.AuditEvent) {
	evt := a.log.Info()
	switch event.Outcome {
	case engine.AuditFailed, engine.AuditRollbackFailed:
		evt = a.log.Error()
	case engine.AuditNotUndone:
		evt = a.log.Warn()
	}
	evt.
		Str("run_id", event.RunID).
		Str("operation_id", event.OperationID).
		Str("kind", string(event.Kind)).
		Str("target", event.Target).
		Str("outcome", string(event.Outcome)).
		Str("actor", event.Actor).
		Str("detail", event.Detail).
		Msg("operation " + string(event.Outcome))

	if a.metrics != nil {
		a.metrics.ObserveOperation(event.Kind, event.Outcome)
	}

	if a.store != nil {
		if err := a.store.AppendAudit(ctx, event); err != nil {
			a.log.Error().Err(err).Str("run_id", event.RunID).Msg("failed to persist audit event")
		}
	}
}
