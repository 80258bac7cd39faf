package appliers

import (
	"context"
	"fmt"
	"sync"

	"github.com/hookmill/hookmill/pkg/lifecycle"
	"github.com/hookmill/hookmill/pkg/manifest"
)

// SubmittedResource is one resource accepted by the memory applier.
type SubmittedResource struct {
	// ID is the handle ID assigned at submission.
	ID string `json:"id"`

	// Name is the resource name from the manifest metadata.
	Name string `json:"name"`

	// Kind is the declared resource kind.
	Kind string `json:"kind"`

	// Manifest is the raw payload as submitted.
	Manifest []byte `json:"manifest"`
}

// outcome scripts how a named resource behaves after submission.
type outcome struct {
	rejectSubmission bool
	remainingPolls   int
	succeed          bool
	message          string
}

// MemoryApplier is an in-process applier. The CLI's dry-run mode uses it
// to exercise a full operation without a target control plane, and tests
// use it to script submission and completion behavior per resource name.
//
// Unscripted resources are accepted, and run-to-completion kinds report
// terminal success on the first poll.
type MemoryApplier struct {
	// mu protects all applier state.
	mu sync.Mutex

	// seq generates handle IDs.
	seq int

	// submissions records accepted resources in submission order.
	submissions []SubmittedResource

	// states maps handle ID to the scripted outcome driving polls.
	states map[string]*outcome

	// scripts maps resource name to its scripted outcome.
	scripts map[string]outcome
}

// NewMemoryApplier creates an in-process applier.
func NewMemoryApplier() *MemoryApplier {
	return &MemoryApplier{
		states:  make(map[string]*outcome),
		scripts: make(map[string]outcome),
	}
}

// RejectSubmission scripts the named resource to be rejected at Submit.
func (a *MemoryApplier) RejectSubmission(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripts[name] = outcome{rejectSubmission: true}
}

// CompleteAfter scripts the named resource to reach a terminal state
// after polls status polls. With succeed false the terminal state is a
// failure carrying message.
func (a *MemoryApplier) CompleteAfter(name string, polls int, succeed bool, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripts[name] = outcome{
		remainingPolls: polls,
		succeed:        succeed,
		message:        message,
	}
}

// Submit implements lifecycle.Applier.
func (a *MemoryApplier) Submit(ctx context.Context, raw []byte) (*lifecycle.StatusHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, kind := identify(raw)

	a.mu.Lock()
	defer a.mu.Unlock()

	script, scripted := a.scripts[name]
	if scripted && script.rejectSubmission {
		return nil, fmt.Errorf("submission rejected: %s", name)
	}
	if !scripted {
		script = outcome{remainingPolls: 1, succeed: true}
	}

	a.seq++
	id := fmt.Sprintf("res-%d", a.seq)
	a.submissions = append(a.submissions, SubmittedResource{
		ID:       id,
		Name:     name,
		Kind:     kind,
		Manifest: raw,
	})
	state := script
	a.states[id] = &state

	return &lifecycle.StatusHandle{ID: id}, nil
}

// Poll implements lifecycle.Applier.
func (a *MemoryApplier) Poll(ctx context.Context, handle *lifecycle.StatusHandle) (*lifecycle.ObservedState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.states[handle.ID]
	if !ok {
		return nil, fmt.Errorf("unknown resource handle: %s", handle.ID)
	}

	if state.remainingPolls > 0 {
		state.remainingPolls--
	}
	if state.remainingPolls > 0 {
		return &lifecycle.ObservedState{}, nil
	}

	return &lifecycle.ObservedState{
		Done:      true,
		Succeeded: state.succeed,
		Message:   state.message,
	}, nil
}

// Submissions returns the accepted resources in submission order.
func (a *MemoryApplier) Submissions() []SubmittedResource {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]SubmittedResource, len(a.submissions))
	copy(out, a.submissions)
	return out
}

// SubmissionCount returns the number of accepted resources.
func (a *MemoryApplier) SubmissionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.submissions)
}

// identify pulls name and kind out of a raw manifest for bookkeeping.
// Undecodable payloads are still accepted; the applier is not a validator.
func identify(raw []byte) (name, kind string) {
	ms, err := manifest.Decode(raw)
	if err != nil || len(ms) == 0 {
		return "", ""
	}
	return ms[0].Name, ms[0].Kind
}
