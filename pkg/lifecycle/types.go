package lifecycle

import (
	"fmt"
	"time"
)

// Operation represents a caller-initiated release action.
type Operation string

const (
	// OperationInstall installs a release for the first time.
	OperationInstall Operation = "install"

	// OperationUpgrade upgrades an existing release to a new revision.
	OperationUpgrade Operation = "upgrade"

	// OperationDelete removes a release from the target system.
	OperationDelete Operation = "delete"

	// OperationRollback reverts a release to a previous revision.
	OperationRollback Operation = "rollback"
)

// Operations lists every supported release operation.
var Operations = []Operation{
	OperationInstall,
	OperationUpgrade,
	OperationDelete,
	OperationRollback,
}

// Validate checks if the operation is one of the supported release actions.
func (o Operation) Validate() error {
	switch o {
	case OperationInstall, OperationUpgrade, OperationDelete, OperationRollback:
		return nil
	default:
		return NewPermanentError(fmt.Sprintf("unknown operation: %s", o), nil).
			WithCode(ErrCodeUnknownOperation)
	}
}

// String returns the operation name.
func (o Operation) String() string {
	return string(o)
}

// Phase represents one of the fixed lifecycle moments a hook can bind to.
type Phase string

const (
	// PhasePreInstall runs before any release resources are loaded.
	PhasePreInstall Phase = "pre-install"

	// PhasePostInstall runs after all release resources have been loaded.
	PhasePostInstall Phase = "post-install"

	// PhasePreDelete runs before any release resources are removed.
	PhasePreDelete Phase = "pre-delete"

	// PhasePostDelete runs after all release resources have been removed.
	PhasePostDelete Phase = "post-delete"

	// PhasePreUpgrade runs before an upgrade modifies release resources.
	PhasePreUpgrade Phase = "pre-upgrade"

	// PhasePostUpgrade runs after an upgrade has modified release resources.
	PhasePostUpgrade Phase = "post-upgrade"

	// PhasePreRollback runs before a rollback reverts release resources.
	PhasePreRollback Phase = "pre-rollback"

	// PhasePostRollback runs after a rollback has reverted release resources.
	PhasePostRollback Phase = "post-rollback"
)

// Phases lists every recognized lifecycle phase. The set is closed:
// annotation values outside it never create new phases.
var Phases = []Phase{
	PhasePreInstall,
	PhasePostInstall,
	PhasePreDelete,
	PhasePostDelete,
	PhasePreUpgrade,
	PhasePostUpgrade,
	PhasePreRollback,
	PhasePostRollback,
}

// Validate checks if the phase is a member of the closed phase set.
func (p Phase) Validate() error {
	switch p {
	case PhasePreInstall, PhasePostInstall, PhasePreDelete, PhasePostDelete,
		PhasePreUpgrade, PhasePostUpgrade, PhasePreRollback, PhasePostRollback:
		return nil
	default:
		return NewPermanentError(fmt.Sprintf("unrecognized phase: %s", p), nil).
			WithCode(ErrCodeUnrecognizedPhase)
	}
}

// String returns the phase identifier.
func (p Phase) String() string {
	return string(p)
}

// ReadinessState represents the observed readiness of a submitted hook.
type ReadinessState string

const (
	// ReadinessPending indicates the hook was accepted but has not reached
	// a terminal state yet.
	ReadinessPending ReadinessState = "pending"

	// ReadinessReady indicates the hook reached terminal success.
	ReadinessReady ReadinessState = "ready"

	// ReadinessFailed indicates the hook reached terminal failure.
	ReadinessFailed ReadinessState = "failed"
)

// IsTerminal returns true once the state can no longer change.
func (s ReadinessState) IsTerminal() bool {
	return s == ReadinessReady || s == ReadinessFailed
}

// Hook is a rendered manifest bound to one or more lifecycle phases.
// Hooks are deliberately excluded from the release's tracked resource set;
// they exist only for the duration of the phase that executes them.
type Hook struct {
	// Name is the manifest's declared name, used for reporting.
	Name string `json:"name"`

	// Kind identifies the kind of object the manifest declares. It selects
	// the readiness policy applied while waiting for the hook.
	Kind string `json:"kind"`

	// Phases is the set of lifecycle phases the manifest is bound to. A
	// manifest may belong to several phases simultaneously.
	Phases []Phase `json:"phases"`

	// Manifest is the opaque rendered payload, passed through unmodified
	// to the apply mechanism.
	Manifest []byte `json:"manifest"`
}

// BoundTo returns true if the hook declares the given phase.
func (h *Hook) BoundTo(phase Phase) bool {
	for _, p := range h.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// HookSet indexes hooks by the phases they declare. Ordering within a
// bucket reflects only the order manifests were discovered; it is not an
// execution-order guarantee to package authors.
type HookSet map[Phase][]*Hook

// Get returns the hooks bound to a phase in discovery order.
func (s HookSet) Get(phase Phase) []*Hook {
	return s[phase]
}

// Add appends a hook to every phase bucket it declares.
func (s HookSet) Add(hook *Hook) {
	for _, p := range hook.Phases {
		s[p] = append(s[p], hook)
	}
}

// Len returns the total number of phase bindings in the set. A hook bound
// to two phases counts twice.
func (s HookSet) Len() int {
	n := 0
	for _, hooks := range s {
		n += len(hooks)
	}
	return n
}

// PhaseResult reports the outcome of executing one phase's hooks.
type PhaseResult struct {
	// Phase is the phase that was executed.
	Phase Phase `json:"phase"`

	// Succeeded is true only if every hook in the phase reached Ready.
	Succeeded bool `json:"succeeded"`

	// Executed counts the hooks that were submitted before the phase
	// completed or aborted.
	Executed int `json:"executed"`

	// FailedHook names the first hook that failed, if any.
	FailedHook string `json:"failed_hook,omitempty"`

	// Executions holds one record per hook that was submitted, in
	// execution order.
	Executions []*HookExecutionRecord `json:"executions,omitempty"`

	// Err is the failure that aborted the phase, if any.
	Err error `json:"-"`

	// StartedAt is when phase execution began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when phase execution finished.
	CompletedAt time.Time `json:"completed_at"`
}

// OperationResult reports the outcome of a full release operation.
type OperationResult struct {
	// RunID is the unique identifier assigned to this operation run.
	RunID string `json:"run_id"`

	// Operation is the release action that was performed.
	Operation Operation `json:"operation"`

	// Succeeded is true only if both hook phases and the main action
	// completed without error.
	Succeeded bool `json:"succeeded"`

	// FailedPhase identifies the phase that caused the failure, if the
	// failure came from a hook phase.
	FailedPhase Phase `json:"failed_phase,omitempty"`

	// FailedHook names the hook that caused the failure, if any.
	FailedHook string `json:"failed_hook,omitempty"`

	// Err is the terminating error, if the operation failed.
	Err error `json:"-"`

	// StartedAt is when the operation began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the operation finished.
	CompletedAt time.Time `json:"completed_at"`
}
