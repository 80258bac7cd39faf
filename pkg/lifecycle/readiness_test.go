package lifecycle

import "testing"

func TestRequiresPolling(t *testing.T) {
	e := NewReadinessEvaluator()

	if !e.RequiresPolling(KindJob) {
		t.Error("Expected Job kind to require polling")
	}
	for _, kind := range []string{"ConfigMap", "Secret", "ServiceAccount", "", "job"} {
		if e.RequiresPolling(kind) {
			t.Errorf("Expected kind %q not to require polling", kind)
		}
	}
}

func TestEvaluateReadyOnAcceptKinds(t *testing.T) {
	e := NewReadinessEvaluator()

	// Observed state is irrelevant for ready-on-accept kinds; the
	// acknowledged submission is the readiness signal.
	states := []*ObservedState{
		nil,
		{},
		{Done: true, Succeeded: false, Message: "would be a failure for a Job"},
	}
	for _, state := range states {
		if got := e.Evaluate("ConfigMap", state); got != ReadinessReady {
			t.Errorf("Expected Ready for ConfigMap with state %+v, got %q", state, got)
		}
	}
}

func TestEvaluateRunToCompletionKind(t *testing.T) {
	e := NewReadinessEvaluator()

	cases := []struct {
		state *ObservedState
		want  ReadinessState
	}{
		{nil, ReadinessPending},
		{&ObservedState{}, ReadinessPending},
		{&ObservedState{Done: false, Succeeded: true}, ReadinessPending},
		{&ObservedState{Done: true, Succeeded: true}, ReadinessReady},
		{&ObservedState{Done: true, Succeeded: false, Message: "backoff limit exceeded"}, ReadinessFailed},
	}

	for _, tc := range cases {
		if got := e.Evaluate(KindJob, tc.state); got != tc.want {
			t.Errorf("Expected %q for Job state %+v, got %q", tc.want, tc.state, got)
		}
	}
}
