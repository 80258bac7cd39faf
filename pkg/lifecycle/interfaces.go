package lifecycle

import (
	"context"
	"time"
)

// StatusHandle identifies a submitted resource for later status polls.
// It is issued by the apply mechanism and is opaque to the orchestrator.
type StatusHandle struct {
	// ID is the applier-assigned identifier for the submitted resource.
	ID string `json:"id"`
}

// ObservedState is a point-in-time snapshot of a submitted resource as
// reported by the apply mechanism.
type ObservedState struct {
	// Done is true once the resource reached a terminal state. Only
	// run-to-completion kinds ever report Done.
	Done bool `json:"done"`

	// Succeeded reports terminal success; meaningful only when Done.
	Succeeded bool `json:"succeeded"`

	// Message carries an applier-provided detail string, typically the
	// failure reason for resources that terminated unsuccessfully.
	Message string `json:"message,omitempty"`
}

// Applier is the apply mechanism that talks to the target control plane.
// The orchestrator treats it as an opaque capability; it relies on the
// applier's own idempotency and conflict handling and holds no locks over
// the target system's state.
type Applier interface {
	// Submit sends a rendered manifest to the target system for creation.
	// A returned error means the submission was rejected.
	Submit(ctx context.Context, manifest []byte) (*StatusHandle, error)

	// Poll returns the current observed state of a submitted resource.
	Poll(ctx context.Context, handle *StatusHandle) (*ObservedState, error)
}

// OperationRecord is the persisted audit record for one operation run.
// This is hookmill's own history, not the release's managed-resource set.
type OperationRecord struct {
	// ID is the unique run identifier.
	ID string `json:"id"`

	// Operation is the release action performed.
	Operation Operation `json:"operation"`

	// Status is "running", "succeeded", or "failed".
	Status string `json:"status"`

	// Error is the terminating error message, if the run failed.
	Error string `json:"error,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HookExecutionRecord is the persisted audit record for one hook execution.
type HookExecutionRecord struct {
	// ID is the unique execution identifier.
	ID string `json:"id"`

	// RunID is the operation run this execution belongs to.
	RunID string `json:"run_id"`

	// Phase is the lifecycle phase the hook executed in.
	Phase Phase `json:"phase"`

	// HookName is the name of the executed hook.
	HookName string `json:"hook_name"`

	// Kind is the hook's resource kind.
	Kind string `json:"kind"`

	// State is the terminal readiness state the hook reached.
	State ReadinessState `json:"state"`

	// Error is the failure detail, if the hook failed.
	Error string `json:"error,omitempty"`

	// StartedAt is when the hook was submitted.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the hook reached a terminal state.
	CompletedAt time.Time `json:"completed_at"`

	// err holds the structured failure for in-process propagation; the
	// Error string is what gets persisted.
	err error
}

// HistoryStore persists operation runs and hook executions. A nil store
// disables recording.
type HistoryStore interface {
	// CreateOperationRun records the start of an operation run.
	CreateOperationRun(ctx context.Context, rec *OperationRecord) error

	// CompleteOperationRun records the terminal status of a run.
	CompleteOperationRun(ctx context.Context, id string, status string, errMsg string) error

	// CreateHookExecution records one completed hook execution.
	CreateHookExecution(ctx context.Context, rec *HookExecutionRecord) error
}

// Event describes a lifecycle execution event.
type Event struct {
	// Type is the event type, e.g. "phase.started".
	Type string `json:"type"`

	// RunID is the operation run the event belongs to.
	RunID string `json:"run_id,omitempty"`

	// Operation is the release action in progress.
	Operation Operation `json:"operation,omitempty"`

	// Phase is the lifecycle phase, for phase and hook events.
	Phase Phase `json:"phase,omitempty"`

	// Hook names the hook, for hook events.
	Hook string `json:"hook,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity (info, warning, error).
	Level string `json:"level"`

	// Elapsed is the duration of the completed unit of work, set on
	// completion and failure events.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Event types emitted during operation execution.
const (
	EventTypeOperationStarted   = "operation.started"
	EventTypeOperationCompleted = "operation.completed"
	EventTypeOperationFailed    = "operation.failed"
	EventTypePhaseStarted       = "phase.started"
	EventTypePhaseCompleted     = "phase.completed"
	EventTypePhaseFailed        = "phase.failed"
	EventTypeHookSubmitted      = "hook.submitted"
	EventTypeHookReady          = "hook.ready"
	EventTypeHookFailed         = "hook.failed"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventPublisher receives lifecycle execution events. A nil publisher
// disables event emission.
type EventPublisher interface {
	// Publish delivers one event. Implementations must not block the
	// orchestration pipeline.
	Publish(ctx context.Context, event Event)
}

// PhaseTracer instruments hook phases with tracing spans. A nil tracer
// disables phase spans.
type PhaseTracer interface {
	// StartPhase opens a span covering one hook phase. The returned end
	// function records err as the phase outcome and closes the span.
	StartPhase(ctx context.Context, phase Phase, hookCount int) (context.Context, func(err error))
}
