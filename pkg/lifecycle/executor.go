package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExecutorOptions configures phase execution timing.
type ExecutorOptions struct {
	// PollInterval is the delay between readiness polls for
	// run-to-completion hooks.
	PollInterval time.Duration

	// HookTimeout is the per-hook deadline for reaching a terminal state.
	// On expiry the hook is treated as Failed with a timeout reason.
	HookTimeout time.Duration
}

// Default execution timing, applied when options are left zero.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultHookTimeout  = 5 * time.Minute
)

func (o ExecutorOptions) withDefaults() ExecutorOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.HookTimeout <= 0 {
		o.HookTimeout = DefaultHookTimeout
	}
	return o
}

// PhaseExecutor executes the hooks bound to one lifecycle phase, strictly
// serially and in discovery order. It owns the hooks' readiness states for
// the duration of the phase; nothing is persisted into the release's
// tracked resource set, and already-submitted hook resources are never
// cleaned up when the phase aborts.
type PhaseExecutor struct {
	applier   Applier
	evaluator *ReadinessEvaluator
	events    EventPublisher
	logger    zerolog.Logger
	opts      ExecutorOptions
}

// NewPhaseExecutor creates a phase executor. The event publisher may be
// nil to disable event emission.
func NewPhaseExecutor(
	applier Applier,
	evaluator *ReadinessEvaluator,
	events EventPublisher,
	logger zerolog.Logger,
	opts ExecutorOptions,
) *PhaseExecutor {
	return &PhaseExecutor{
		applier:   applier,
		evaluator: evaluator,
		events:    events,
		logger:    logger.With().Str("component", "phase-executor").Logger(),
		opts:      opts.withDefaults(),
	}
}

// Run executes every hook bound to phase in set. A phase with no hooks is
// a no-op success: the applier is never called. The phase halts on the
// first hook that reaches Failed; hooks after it are skipped.
func (x *PhaseExecutor) Run(ctx context.Context, runID string, phase Phase, set HookSet) *PhaseResult {
	result := &PhaseResult{
		Phase:     phase,
		StartedAt: time.Now(),
	}

	hooks := set.Get(phase)
	if len(hooks) == 0 {
		result.Succeeded = true
		result.CompletedAt = time.Now()
		return result
	}

	x.publish(ctx, Event{
		Type:    EventTypePhaseStarted,
		RunID:   runID,
		Phase:   phase,
		Message: fmt.Sprintf("Executing %d hook(s)", len(hooks)),
		Level:   EventLevelInfo,
	})

	for _, hook := range hooks {
		rec := x.executeHook(ctx, runID, phase, hook)
		result.Executed++
		result.Executions = append(result.Executions, rec)

		if rec.State == ReadinessFailed {
			hookErr := rec.err
			if hookErr == nil {
				hookErr = NewPermanentError("hook failed", nil).WithCode(ErrCodeHookFailed)
			}
			result.FailedHook = hook.Name
			result.Err = NewPermanentError("phase aborted", hookErr).
				WithCode(ErrCodePhaseAborted).
				WithPhase(phase).
				WithHook(hook.Name)
			result.CompletedAt = time.Now()

			x.publish(ctx, Event{
				Type:    EventTypePhaseFailed,
				RunID:   runID,
				Phase:   phase,
				Hook:    hook.Name,
				Message: result.Err.Error(),
				Level:   EventLevelError,
				Elapsed: result.CompletedAt.Sub(result.StartedAt),
			})
			return result
		}
	}

	result.Succeeded = true
	result.CompletedAt = time.Now()

	x.publish(ctx, Event{
		Type:    EventTypePhaseCompleted,
		RunID:   runID,
		Phase:   phase,
		Message: fmt.Sprintf("All %d hook(s) ready", result.Executed),
		Level:   EventLevelInfo,
		Elapsed: result.CompletedAt.Sub(result.StartedAt),
	})
	return result
}

// executeHook submits one hook and drives it to a terminal readiness
// state. The returned record always carries a terminal state.
func (x *PhaseExecutor) executeHook(ctx context.Context, runID string, phase Phase, hook *Hook) *HookExecutionRecord {
	rec := &HookExecutionRecord{
		ID:        uuid.New().String(),
		RunID:     runID,
		Phase:     phase,
		HookName:  hook.Name,
		Kind:      hook.Kind,
		StartedAt: time.Now(),
	}

	x.logger.Debug().
		Str("run_id", runID).
		Str("phase", phase.String()).
		Str("hook", hook.Name).
		Str("kind", hook.Kind).
		Msg("Submitting hook")

	x.publish(ctx, Event{
		Type:    EventTypeHookSubmitted,
		RunID:   runID,
		Phase:   phase,
		Hook:    hook.Name,
		Message: "Hook submitted",
		Level:   EventLevelInfo,
	})

	handle, err := x.applier.Submit(ctx, hook.Manifest)
	if err != nil {
		// A rejected submission fails the hook immediately, whatever its
		// kind.
		x.finishHook(ctx, rec, ReadinessFailed,
			NewPermanentError("hook submission rejected", err).
				WithCode(ErrCodeSubmissionFailed).
				WithPhase(phase).
				WithHook(hook.Name))
		return rec
	}

	if !x.evaluator.RequiresPolling(hook.Kind) {
		x.finishHook(ctx, rec, x.evaluator.Evaluate(hook.Kind, nil), nil)
		return rec
	}

	state, err := x.awaitCompletion(ctx, hook, handle)
	x.finishHook(ctx, rec, state, err)
	return rec
}

// awaitCompletion polls a run-to-completion hook until it terminates, the
// per-hook timeout elapses, or the caller's context is cancelled.
func (x *PhaseExecutor) awaitCompletion(ctx context.Context, hook *Hook, handle *StatusHandle) (ReadinessState, error) {
	pollCtx, cancel := context.WithTimeout(ctx, x.opts.HookTimeout)
	defer cancel()

	ticker := time.NewTicker(x.opts.PollInterval)
	defer ticker.Stop()

	timeout := func() (ReadinessState, error) {
		return ReadinessFailed, NewTransientError("timed out waiting for hook completion", pollCtx.Err()).
			WithCode(ErrCodeReadinessTimeout).
			WithHook(hook.Name)
	}

	for {
		// The ticker and the deadline can be ready at the same time; an
		// elapsed deadline must report as a timeout, not a failed poll.
		if pollCtx.Err() != nil {
			return timeout()
		}

		observed, err := x.applier.Poll(pollCtx, handle)
		if err != nil {
			if pollCtx.Err() != nil {
				return timeout()
			}
			return ReadinessFailed, NewTransientError("failed to poll hook status", err).
				WithCode(ErrCodeHookFailed).
				WithHook(hook.Name)
		}

		switch state := x.evaluator.Evaluate(hook.Kind, observed); state {
		case ReadinessReady:
			return ReadinessReady, nil
		case ReadinessFailed:
			return ReadinessFailed, NewPermanentError(
				fmt.Sprintf("hook terminated unsuccessfully: %s", observed.Message), nil).
				WithCode(ErrCodeHookFailed).
				WithHook(hook.Name)
		}

		select {
		case <-ticker.C:
		case <-pollCtx.Done():
			return timeout()
		}
	}
}

// finishHook stamps the terminal state onto the record and emits the
// matching event.
func (x *PhaseExecutor) finishHook(ctx context.Context, rec *HookExecutionRecord, state ReadinessState, err error) {
	rec.State = state
	rec.CompletedAt = time.Now()
	rec.err = err
	if err != nil {
		rec.Error = err.Error()
	}

	if state == ReadinessFailed {
		x.logger.Error().
			Str("hook", rec.HookName).
			Str("phase", rec.Phase.String()).
			Err(err).
			Msg("Hook failed")
		x.publish(ctx, Event{
			Type:    EventTypeHookFailed,
			RunID:   rec.RunID,
			Phase:   rec.Phase,
			Hook:    rec.HookName,
			Message: rec.Error,
			Level:   EventLevelError,
			Elapsed: rec.CompletedAt.Sub(rec.StartedAt),
		})
		return
	}

	x.logger.Debug().
		Str("hook", rec.HookName).
		Str("phase", rec.Phase.String()).
		Msg("Hook ready")
	x.publish(ctx, Event{
		Type:    EventTypeHookReady,
		RunID:   rec.RunID,
		Phase:   rec.Phase,
		Hook:    rec.HookName,
		Message: "Hook ready",
		Level:   EventLevelInfo,
		Elapsed: rec.CompletedAt.Sub(rec.StartedAt),
	})
}

func (x *PhaseExecutor) publish(ctx context.Context, event Event) {
	if x.events != nil {
		x.events.Publish(ctx, event)
	}
}
