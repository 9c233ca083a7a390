// Package telemetry provides logging, the audit sink and Prometheus
// metrics for lampctl.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerOptions configures the base logger.
type LoggerOptions struct {
	// Level is trace, debug, info, warn or error.
	Level string

	// Format is console or json.
	Format string

	// Output defaults to stderr.
	Output io.Writer
}

// NewLogger creates the base zerolog logger.
func NewLogger(opts LoggerOptions) zerolog.Logger {
	writer := opts.Output
	if writer == nil {
		writer = os.Stderr
	}
	if opts.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	return logger.Level(parseLevel(opts.Level))
}

// ComponentLogger derives a child logger tagged with a component name.
func ComponentLogger(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// WithRunID derives a child logger tagged with the executor run.
func WithRunID(base zerolog.Logger, runID string) zerolog.Logger {
	return base.With().Str("run_id", runID).Logger()
}

// WithOperationID derives a child logger tagged with a plan operation.
func WithOperationID(base zerolog.Logger, operationID string) zerolog.Logger {
	return base.With().Str("operation_id", operationID).Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
