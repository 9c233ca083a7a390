package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a provisioning failure for reporting and exit-code mapping.
type ErrorClass string

const (
	// ErrorClassValidation indicates a precondition was unmet and no mutation
	// was attempted. Recoverable by operator action outside the engine.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassDependency indicates the plan builder could not construct a
	// valid ordering because a prerequisite resource is absent.
	ErrorClassDependency ErrorClass = "dependency"

	// ErrorClassOperation indicates a forward or inverse action's underlying
	// command failed or timed out.
	ErrorClassOperation ErrorClass = "operation"

	// ErrorClassConcurrency indicates another run holds the host lock.
	ErrorClassConcurrency ErrorClass = "concurrency"

	// ErrorClassRollback indicates best-effort reversal did not fully restore
	// prior state. Always surfaced prominently, never a mere warning.
	ErrorClassRollback ErrorClass = "rollback"
)

// ProvisionError is a classified error with operation context.
type ProvisionError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the ID of the operation being performed, if applicable.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s): %s", e.Class, e.Message, e.Operation, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ProvisionError) Unwrap() error {
	return e.Err
}

func (e *ProvisionError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *ProvisionError) Is(target error) bool {
	t, ok := target.(*ProvisionError)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// NewValidationError creates an error for a failed preflight gate.
func NewValidationError(message string, err error) *ProvisionError {
	return &ProvisionError{Class: ErrorClassValidation, Code: ErrCodeValidationFailure, Message: message, Err: err}
}

// NewDependencyError creates an error for an unsatisfiable plan prerequisite.
func NewDependencyError(message string, err error) *ProvisionError {
	return &ProvisionError{Class: ErrorClassDependency, Code: ErrCodeUnsatisfiedDependency, Message: message, Err: err}
}

// NewOperationError creates an error for a failed forward or inverse action.
func NewOperationError(message string, err error) *ProvisionError {
	return &ProvisionError{Class: ErrorClassOperation, Code: ErrCodeOperationFailure, Message: message, Err: err}
}

// NewConcurrencyError creates an error for a detected concurrent run.
func NewConcurrencyError(message string, err error) *ProvisionError {
	return &ProvisionError{Class: ErrorClassConcurrency, Code: ErrCodeConcurrentRunDetected, Message: message, Err: err}
}

// NewRollbackError creates an error for an incomplete rollback.
func NewRollbackError(message string, err error) *ProvisionError {
	return &ProvisionError{Class: ErrorClassRollback, Code: ErrCodeRollbackIncomplete, Message: message, Err: err}
}

// WithOperation adds operation context to an error.
func (e *ProvisionError) WithOperation(operationID string) *ProvisionError {
	e.Operation = operationID
	return e
}

// WithCode overrides the error code.
func (e *ProvisionError) WithCode(code string) *ProvisionError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *ProvisionError) WithDetail(key string, value interface{}) *ProvisionError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsValidationFailure reports whether err is a preflight validation failure.
func IsValidationFailure(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

// IsUnsatisfiedDependency reports whether err is a plan dependency failure.
func IsUnsatisfiedDependency(err error) bool {
	return hasClass(err, ErrorClassDependency)
}

// IsOperationFailure reports whether err is a failed forward or inverse action.
func IsOperationFailure(err error) bool {
	return hasClass(err, ErrorClassOperation)
}

// IsConcurrentRun reports whether err indicates a concurrent run was detected.
func IsConcurrentRun(err error) bool {
	return hasClass(err, ErrorClassConcurrency)
}

// IsRollbackIncomplete reports whether err indicates a partially failed rollback.
func IsRollbackIncomplete(err error) bool {
	return hasClass(err, ErrorClassRollback)
}

func hasClass(err error, class ErrorClass) bool {
	var e *ProvisionError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// Common error codes.
const (
	ErrCodeValidationFailure     = "VALIDATION_FAILURE"
	ErrCodeUnsatisfiedDependency = "UNSATISFIED_DEPENDENCY"
	ErrCodeOperationFailure      = "OPERATION_FAILURE"
	ErrCodeOperationTimeout      = "OPERATION_TIMEOUT"
	ErrCodeConcurrentRunDetected = "CONCURRENT_RUN_DETECTED"
	ErrCodeRollbackIncomplete    = "ROLLBACK_INCOMPLETE"
	ErrCodeCollision             = "RESOURCE_COLLISION"
	ErrCodeNotConfirmed          = "NOT_CONFIRMED"
	ErrCodeUnsupportedVersion    = "UNSUPPORTED_VERSION"
)
