package lifecycle

// readinessPolicy selects how a resource kind reaches Ready. The variant
// set is closed; supporting a new waiting behavior means adding a variant
// here rather than dispatching on arbitrary kind strings.
type readinessPolicy int

const (
	// policyReadyOnAccept marks the hook Ready as soon as the apply
	// mechanism acknowledged the create/update call.
	policyReadyOnAccept readinessPolicy = iota

	// policyWaitForCompletion keeps the hook Pending until the observed
	// state reports terminal success or failure.
	policyWaitForCompletion
)

// KindJob is the run-to-completion workload kind. It is the only kind
// whose readiness requires active polling.
const KindJob = "Job"

// waitForCompletionKinds maps resource kinds to the polling policy.
// Kinds absent from the map fall back to ready-on-accept.
var waitForCompletionKinds = map[string]struct{}{
	KindJob: {},
}

// policyForKind returns the readiness policy for a resource kind.
func policyForKind(kind string) readinessPolicy {
	if _, ok := waitForCompletionKinds[kind]; ok {
		return policyWaitForCompletion
	}
	return policyReadyOnAccept
}

// ReadinessEvaluator decides, per resource kind, whether a submitted hook
// is Ready, still Pending, or Failed given its observed state.
type ReadinessEvaluator struct{}

// NewReadinessEvaluator creates a readiness evaluator.
func NewReadinessEvaluator() *ReadinessEvaluator {
	return &ReadinessEvaluator{}
}

// RequiresPolling returns true if the kind must be polled until it
// reaches a terminal state before the lifecycle can proceed.
func (e *ReadinessEvaluator) RequiresPolling(kind string) bool {
	return policyForKind(kind) == policyWaitForCompletion
}

// Evaluate maps an observed state to a readiness state for the given
// kind. For ready-on-accept kinds the observed state is irrelevant: the
// submission acknowledgment already made the hook Ready.
func (e *ReadinessEvaluator) Evaluate(kind string, state *ObservedState) ReadinessState {
	switch policyForKind(kind) {
	case policyWaitForCompletion:
		if state == nil || !state.Done {
			return ReadinessPending
		}
		if state.Succeeded {
			return ReadinessReady
		}
		return ReadinessFailed
	default:
		return ReadinessReady
	}
}
