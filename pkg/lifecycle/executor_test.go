package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// Mock applier for testing. Handles are keyed by the raw manifest payload,
// which the tests set to the hook name.
type mockApplier struct {
	mu        sync.Mutex
	submitted []string
	polled    map[string]int
	rejects   map[string]error
	states    map[string][]*ObservedState
	pollErrs  map[string]error

	// contextual makes Poll fail with the context error once the poll
	// context is done, like a real apply mechanism.
	contextual bool
}

func newMockApplier() *mockApplier {
	return &mockApplier{
		polled:   make(map[string]int),
		rejects:  make(map[string]error),
		states:   make(map[string][]*ObservedState),
		pollErrs: make(map[string]error),
	}
}

// scriptStates sets the sequence of observed states returned by
// successive polls; the last state repeats once the sequence is consumed.
func (m *mockApplier) scriptStates(name string, states ...*ObservedState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[name] = states
}

func (m *mockApplier) Submit(ctx context.Context, manifest []byte) (*StatusHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := string(manifest)
	if err, ok := m.rejects[name]; ok {
		return nil, err
	}
	m.submitted = append(m.submitted, name)
	return &StatusHandle{ID: name}, nil
}

func (m *mockApplier) Poll(ctx context.Context, handle *StatusHandle) (*ObservedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.contextual {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if err, ok := m.pollErrs[handle.ID]; ok {
		return nil, err
	}

	seq := m.states[handle.ID]
	if len(seq) == 0 {
		return &ObservedState{Done: true, Succeeded: true}, nil
	}
	i := m.polled[handle.ID]
	m.polled[handle.ID]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i], nil
}

func (m *mockApplier) submissions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.submitted...)
}

// Mock event publisher for testing
type mockPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockPublisher) Publish(ctx context.Context, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) byType(eventType string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testExecutor(applier Applier, publisher EventPublisher) *PhaseExecutor {
	return NewPhaseExecutor(applier, NewReadinessEvaluator(), publisher, zerolog.Nop(), ExecutorOptions{
		PollInterval: time.Millisecond,
		HookTimeout:  100 * time.Millisecond,
	})
}

func jobHook(name string, phases ...Phase) *Hook {
	return &Hook{Name: name, Kind: KindJob, Phases: phases, Manifest: []byte(name)}
}

func acceptHook(name string, phases ...Phase) *Hook {
	return &Hook{Name: name, Kind: "ConfigMap", Phases: phases, Manifest: []byte(name)}
}

func TestRunEmptyPhaseSucceedsWithoutApplierCalls(t *testing.T) {
	applier := newMockApplier()
	result := testExecutor(applier, nil).Run(context.Background(), "run-1", PhasePreInstall, HookSet{})

	if !result.Succeeded {
		t.Fatal("Expected empty phase to succeed")
	}
	if result.Executed != 0 {
		t.Errorf("Expected 0 executed hooks, got %d", result.Executed)
	}
	if len(applier.submissions()) != 0 {
		t.Errorf("Expected no submissions for empty phase, got %v", applier.submissions())
	}
}

func TestRunExecutesHooksSeriallyInDiscoveryOrder(t *testing.T) {
	applier := newMockApplier()
	publisher := &mockPublisher{}

	set := HookSet{}
	set.Add(acceptHook("first", PhasePreInstall))
	set.Add(jobHook("second", PhasePreInstall))
	set.Add(acceptHook("third", PhasePreInstall))

	result := testExecutor(applier, publisher).Run(context.Background(), "run-1", PhasePreInstall, set)

	if !result.Succeeded {
		t.Fatalf("Expected phase to succeed, got %v", result.Err)
	}
	if result.Executed != 3 {
		t.Errorf("Expected 3 executed hooks, got %d", result.Executed)
	}

	subs := applier.submissions()
	if len(subs) != 3 || subs[0] != "first" || subs[1] != "second" || subs[2] != "third" {
		t.Errorf("Expected submissions in discovery order, got %v", subs)
	}

	ready := publisher.byType(EventTypeHookReady)
	if len(ready) != 3 {
		t.Errorf("Expected 3 hook.ready events, got %d", len(ready))
	}
	if len(publisher.byType(EventTypePhaseCompleted)) != 1 {
		t.Error("Expected one phase.completed event")
	}
}

func TestRunReadyOnAcceptKindIsNeverPolled(t *testing.T) {
	applier := newMockApplier()

	set := HookSet{}
	set.Add(acceptHook("config", PhasePostInstall))

	result := testExecutor(applier, nil).Run(context.Background(), "run-1", PhasePostInstall, set)

	if !result.Succeeded {
		t.Fatalf("Expected phase to succeed, got %v", result.Err)
	}
	if applier.polled["config"] != 0 {
		t.Errorf("Expected no polls for ready-on-accept kind, got %d", applier.polled["config"])
	}
	if len(result.Executions) != 1 || result.Executions[0].State != ReadinessReady {
		t.Errorf("Expected one Ready execution record, got %+v", result.Executions)
	}
}

func TestRunJobStaysPendingUntilTerminalSuccess(t *testing.T) {
	applier := newMockApplier()
	applier.scriptStates("migrate",
		&ObservedState{},
		&ObservedState{},
		&ObservedState{Done: true, Succeeded: true},
	)

	set := HookSet{}
	set.Add(jobHook("migrate", PhasePreUpgrade))

	result := testExecutor(applier, nil).Run(context.Background(), "run-1", PhasePreUpgrade, set)

	if !result.Succeeded {
		t.Fatalf("Expected phase to succeed, got %v", result.Err)
	}
	if applier.polled["migrate"] != 3 {
		t.Errorf("Expected 3 polls before Ready, got %d", applier.polled["migrate"])
	}
}

func TestRunSubmissionRejectionFailsHook(t *testing.T) {
	applier := newMockApplier()
	applier.rejects["bad"] = fmt.Errorf("manifest rejected by server")

	set := HookSet{}
	set.Add(jobHook("bad", PhasePreInstall))

	result := testExecutor(applier, nil).Run(context.Background(), "run-1", PhasePreInstall, set)

	if result.Succeeded {
		t.Fatal("Expected phase to fail on rejected submission")
	}
	if result.FailedHook != "bad" {
		t.Errorf("Expected failed hook %q, got %q", "bad", result.FailedHook)
	}
	if ErrorCode(result.Executions[0].err) != ErrCodeSubmissionFailed {
		t.Errorf("Expected code %q, got %q",
			ErrCodeSubmissionFailed, ErrorCode(result.Executions[0].err))
	}
	if ErrorCode(result.Err) != ErrCodePhaseAborted {
		t.Errorf("Expected phase error code %q, got %q", ErrCodePhaseAborted, ErrorCode(result.Err))
	}
}

func TestRunHookFailureSkipsRemainingHooks(t *testing.T) {
	applier := newMockApplier()
	applier.scriptStates("breaks",
		&ObservedState{Done: true, Succeeded: false, Message: "backoff limit exceeded"},
	)

	set := HookSet{}
	set.Add(jobHook("breaks", PhasePreDelete))
	set.Add(jobHook("skipped", PhasePreDelete))

	publisher := &mockPublisher{}
	result := testExecutor(applier, publisher).Run(context.Background(), "run-1", PhasePreDelete, set)

	if result.Succeeded {
		t.Fatal("Expected phase to fail")
	}
	if result.Executed != 1 {
		t.Errorf("Expected 1 executed hook before abort, got %d", result.Executed)
	}

	subs := applier.submissions()
	if len(subs) != 1 || subs[0] != "breaks" {
		t.Errorf("Expected only the failing hook to be submitted, got %v", subs)
	}

	if len(publisher.byType(EventTypePhaseFailed)) != 1 {
		t.Error("Expected one phase.failed event")
	}
	if len(result.Executions) != 1 || result.Executions[0].State != ReadinessFailed {
		t.Errorf("Expected one Failed execution record, got %+v", result.Executions)
	}
}

func TestRunPollErrorFailsHook(t *testing.T) {
	applier := newMockApplier()
	applier.pollErrs["flaky"] = fmt.Errorf("connection refused")

	set := HookSet{}
	set.Add(jobHook("flaky", PhasePostUpgrade))

	result := testExecutor(applier, nil).Run(context.Background(), "run-1", PhasePostUpgrade, set)

	if result.Succeeded {
		t.Fatal("Expected phase to fail on poll error")
	}
	if ErrorCode(result.Executions[0].err) != ErrCodeHookFailed {
		t.Errorf("Expected code %q, got %q", ErrCodeHookFailed, ErrorCode(result.Executions[0].err))
	}
}

func TestRunHookTimeout(t *testing.T) {
	applier := newMockApplier()
	// Never reaches a terminal state.
	applier.scriptStates("stuck", &ObservedState{})

	set := HookSet{}
	set.Add(jobHook("stuck", PhasePreRollback))

	executor := NewPhaseExecutor(applier, NewReadinessEvaluator(), nil, zerolog.Nop(), ExecutorOptions{
		PollInterval: time.Millisecond,
		HookTimeout:  20 * time.Millisecond,
	})

	result := executor.Run(context.Background(), "run-1", PhasePreRollback, set)

	if result.Succeeded {
		t.Fatal("Expected phase to fail on timeout")
	}
	if ErrorCode(result.Executions[0].err) != ErrCodeReadinessTimeout {
		t.Errorf("Expected code %q, got %q",
			ErrCodeReadinessTimeout, ErrorCode(result.Executions[0].err))
	}

	var le *LifecycleError
	if !errors.As(result.Executions[0].err, &le) || le.Class != ErrorClassTransient {
		t.Error("Expected timeout to be classified transient")
	}
}

func TestRunTimeoutReportedWhenPollObservesDeadline(t *testing.T) {
	applier := newMockApplier()
	applier.contextual = true
	// Never reaches a terminal state; only the deadline can end the wait.
	applier.scriptStates("stuck", &ObservedState{})

	set := HookSet{}
	set.Add(jobHook("stuck", PhasePreUpgrade))

	executor := NewPhaseExecutor(applier, NewReadinessEvaluator(), nil, zerolog.Nop(), ExecutorOptions{
		PollInterval: time.Millisecond,
		HookTimeout:  5 * time.Millisecond,
	})

	result := executor.Run(context.Background(), "run-1", PhasePreUpgrade, set)

	if result.Succeeded {
		t.Fatal("Expected phase to fail on timeout")
	}
	if ErrorCode(result.Executions[0].err) != ErrCodeReadinessTimeout {
		t.Errorf("Expected code %q even when the poll sees the expired deadline, got %q",
			ErrCodeReadinessTimeout, ErrorCode(result.Executions[0].err))
	}
}

func TestRunOnlyExecutesRequestedPhase(t *testing.T) {
	applier := newMockApplier()

	set := HookSet{}
	set.Add(acceptHook("pre", PhasePreInstall))
	set.Add(acceptHook("post", PhasePostInstall))

	result := testExecutor(applier, nil).Run(context.Background(), "run-1", PhasePreInstall, set)

	if !result.Succeeded {
		t.Fatalf("Expected phase to succeed, got %v", result.Err)
	}
	subs := applier.submissions()
	if len(subs) != 1 || subs[0] != "pre" {
		t.Errorf("Expected only pre-install hooks to run, got %v", subs)
	}
}
