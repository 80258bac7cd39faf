package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MainAction is the caller-supplied non-hook step of an operation, e.g.
// loading the release's tracked resources into the target system or
// removing them. It runs between the pre and post hook phases.
type MainAction func(ctx context.Context) error

// Run statuses recorded in the history store.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Coordinator drives a full release operation: pre-phase hooks, then the
// main action, then post-phase hooks, rigidly in that order. A failure
// upstream aborts everything downstream. The caller is responsible for
// serializing operations per release identity; the coordinator assumes at
// most one operation runs at a time for a given release.
type Coordinator struct {
	executor *PhaseExecutor
	history  HistoryStore
	events   EventPublisher
	tracer   PhaseTracer
	logger   zerolog.Logger
}

// NewCoordinator creates a lifecycle coordinator. The history store,
// event publisher, and tracer may be nil to disable recording, event
// emission, and phase spans.
func NewCoordinator(
	executor *PhaseExecutor,
	history HistoryStore,
	events EventPublisher,
	tracer PhaseTracer,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		executor: executor,
		history:  history,
		events:   events,
		tracer:   tracer,
		logger:   logger.With().Str("component", "lifecycle-coordinator").Logger(),
	}
}

// Perform executes one release operation against the assembled hook set.
// Sequencing is rigid: pre-phase hooks, then main, then post-phase hooks.
// If the pre-phase fails, main and the post-phase are never invoked; if
// main fails, the post-phase is never invoked. Hook resources submitted
// before a failure remain in the target system.
func (c *Coordinator) Perform(ctx context.Context, op Operation, set HookSet, main MainAction) (*OperationResult, error) {
	result := &OperationResult{
		RunID:     uuid.New().String(),
		Operation: op,
		StartedAt: time.Now(),
	}

	if err := op.Validate(); err != nil {
		result.Err = err
		result.CompletedAt = time.Now()
		return result, err
	}

	pre, post, err := PhasesFor(op)
	if err != nil {
		result.Err = err
		result.CompletedAt = time.Now()
		return result, err
	}

	c.logger.Info().
		Str("run_id", result.RunID).
		Str("operation", op.String()).
		Int("hooks", set.Len()).
		Msg("Starting operation")

	c.recordStart(ctx, result)
	c.publish(ctx, Event{
		Type:      EventTypeOperationStarted,
		RunID:     result.RunID,
		Operation: op,
		Message:   "Operation started",
		Level:     EventLevelInfo,
	})

	if failed := c.runPhase(ctx, result, pre, set); failed {
		return c.finish(ctx, result)
	}

	if main != nil {
		if err := main(ctx); err != nil {
			result.Err = NewPermanentError("main action failed", err)
			return c.finish(ctx, result)
		}
	}

	if failed := c.runPhase(ctx, result, post, set); failed {
		return c.finish(ctx, result)
	}

	result.Succeeded = true
	return c.finish(ctx, result)
}

// runPhase executes one hook phase and folds its outcome into the
// operation result. It returns true if the phase failed.
func (c *Coordinator) runPhase(ctx context.Context, result *OperationResult, phase Phase, set HookSet) bool {
	phaseCtx := ctx
	var endSpan func(error)
	if c.tracer != nil {
		phaseCtx, endSpan = c.tracer.StartPhase(ctx, phase, len(set.Get(phase)))
	}

	pr := c.executor.Run(phaseCtx, result.RunID, phase, set)
	if endSpan != nil {
		endSpan(pr.Err)
	}
	c.recordExecutions(ctx, pr)

	if pr.Succeeded {
		return false
	}

	result.FailedPhase = phase
	result.FailedHook = pr.FailedHook
	result.Err = pr.Err
	return true
}

// finish stamps the terminal state, persists it, and emits the closing
// event. It returns the result together with its error, if any.
func (c *Coordinator) finish(ctx context.Context, result *OperationResult) (*OperationResult, error) {
	result.CompletedAt = time.Now()

	status := RunStatusSucceeded
	eventType := EventTypeOperationCompleted
	level := EventLevelInfo
	message := "Operation completed"
	errMsg := ""

	if !result.Succeeded {
		status = RunStatusFailed
		eventType = EventTypeOperationFailed
		level = EventLevelError
		if result.Err != nil {
			errMsg = result.Err.Error()
			message = errMsg
		}
		c.logger.Error().
			Str("run_id", result.RunID).
			Str("operation", result.Operation.String()).
			Str("phase", result.FailedPhase.String()).
			Str("hook", result.FailedHook).
			Err(result.Err).
			Msg("Operation failed")
	} else {
		c.logger.Info().
			Str("run_id", result.RunID).
			Str("operation", result.Operation.String()).
			Msg("Operation completed")
	}

	if c.history != nil {
		if err := c.history.CompleteOperationRun(ctx, result.RunID, status, errMsg); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record operation completion")
		}
	}

	c.publish(ctx, Event{
		Type:      eventType,
		RunID:     result.RunID,
		Operation: result.Operation,
		Phase:     result.FailedPhase,
		Hook:      result.FailedHook,
		Message:   message,
		Level:     level,
		Elapsed:   result.CompletedAt.Sub(result.StartedAt),
	})

	return result, result.Err
}

func (c *Coordinator) recordStart(ctx context.Context, result *OperationResult) {
	if c.history == nil {
		return
	}
	rec := &OperationRecord{
		ID:        result.RunID,
		Operation: result.Operation,
		Status:    RunStatusRunning,
		StartedAt: result.StartedAt,
	}
	if err := c.history.CreateOperationRun(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record operation start")
	}
}

func (c *Coordinator) recordExecutions(ctx context.Context, pr *PhaseResult) {
	if c.history == nil {
		return
	}
	for _, rec := range pr.Executions {
		if err := c.history.CreateHookExecution(ctx, rec); err != nil {
			c.logger.Warn().Err(err).Str("hook", rec.HookName).Msg("Failed to record hook execution")
		}
	}
}

func (c *Coordinator) publish(ctx context.Context, event Event) {
	if c.events != nil {
		c.events.Publish(ctx, event)
	}
}
