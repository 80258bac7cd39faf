// Package lifecycle implements the release-lifecycle hook orchestrator:
// recognizing which rendered manifests are hooks, grouping them by phase,
// executing each phase's hooks through an apply mechanism, and gating
// lifecycle progress on per-kind readiness.
package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure. The orchestrator
	// never retries hooks itself, but callers may re-run the operation.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: unknown operation, hook reached terminal failure.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error codes for programmatic handling of lifecycle failures.
const (
	// ErrCodeUnknownOperation is returned for operations outside the
	// closed install/upgrade/delete/rollback set.
	ErrCodeUnknownOperation = "unknown_operation"

	// ErrCodeUnrecognizedPhase is reported for annotation values outside
	// the closed phase set.
	ErrCodeUnrecognizedPhase = "unrecognized_phase"

	// ErrCodeSubmissionFailed means the apply mechanism rejected a hook.
	ErrCodeSubmissionFailed = "submission_failed"

	// ErrCodeReadinessTimeout means a run-to-completion hook did not reach
	// a terminal state before the caller's deadline.
	ErrCodeReadinessTimeout = "readiness_timeout"

	// ErrCodeHookFailed means a hook reached terminal failure.
	ErrCodeHookFailed = "hook_failed"

	// ErrCodePhaseAborted means a hook failure caused the remaining hooks
	// in the phase to be skipped.
	ErrCodePhaseAborted = "phase_aborted"

	// ErrCodePolicyViolation means an admission policy denied a hook
	// before the phase started.
	ErrCodePolicyViolation = "policy_violation"
)

// LifecycleError represents a classified orchestration error with context.
// nolint:revive // LifecycleError is intentionally named to distinguish from standard errors
type LifecycleError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Phase is the lifecycle phase in which the error occurred, if any.
	Phase Phase `json:"phase,omitempty"`

	// Hook names the hook that caused the error, if applicable.
	Hook string `json:"hook,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	if e.Phase != "" && e.Hook != "" {
		return fmt.Sprintf("[%s] %s (phase=%s, hook=%s)%s",
			e.Class, e.Message, e.Phase, e.Hook, e.unwrapSuffix())
	}
	if e.Phase != "" {
		return fmt.Sprintf("[%s] %s (phase=%s)%s",
			e.Class, e.Message, e.Phase, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, e.unwrapSuffix())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}

func (e *LifecycleError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithCode attaches an error code.
func (e *LifecycleError) WithCode(code string) *LifecycleError {
	e.Code = code
	return e
}

// WithPhase attaches the phase in which the error occurred.
func (e *LifecycleError) WithPhase(phase Phase) *LifecycleError {
	e.Phase = phase
	return e
}

// WithHook attaches the hook that caused the error.
func (e *LifecycleError) WithHook(name string) *LifecycleError {
	e.Hook = name
	return e
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *LifecycleError {
	return &LifecycleError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *LifecycleError {
	return &LifecycleError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the lifecycle error code from an error chain, or
// returns the empty string if the chain carries no LifecycleError.
func ErrorCode(err error) string {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
