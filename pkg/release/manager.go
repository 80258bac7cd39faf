// Package release ties the orchestration core together behind the
// release-operation contract: it partitions rendered manifests, gates
// hooks through admission policies, and drives the lifecycle coordinator.
package release

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hookmill/hookmill/pkg/lifecycle"
	"github.com/hookmill/hookmill/pkg/manifest"
	"github.com/hookmill/hookmill/pkg/policy"
	"github.com/hookmill/hookmill/pkg/telemetry"
)

// Manager exposes release operations over rendered manifests. It assumes
// the caller serializes operations per release identity.
type Manager struct {
	coordinator *lifecycle.Coordinator
	applier     lifecycle.Applier
	extractor   *manifest.Extractor
	policies    *policy.Engine
	tracer      *telemetry.Tracer
	logger      zerolog.Logger
}

// NewManager creates a release manager. The policy engine and tracer may
// be nil to disable admission policies and tracing.
func NewManager(
	coordinator *lifecycle.Coordinator,
	applier lifecycle.Applier,
	extractor *manifest.Extractor,
	policies *policy.Engine,
	tracer *telemetry.Tracer,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		coordinator: coordinator,
		applier:     applier,
		extractor:   extractor,
		policies:    policies,
		tracer:      tracer,
		logger:      logger.With().Str("component", "release-manager").Logger(),
	}
}

// Perform runs one release operation over an ordered, already-flattened
// sequence of rendered manifests covering the top-level package and all
// its sub-packages. A nil main action gets the default for the
// operation: loading the non-hook manifests into the target system for
// install, upgrade, and rollback, and a no-op for delete, where removal
// of tracked resources belongs to the release tracker.
func (m *Manager) Perform(ctx context.Context, op lifecycle.Operation, manifests []*manifest.Manifest, main lifecycle.MainAction) (*lifecycle.OperationResult, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	parts, err := manifest.Partition(manifests, m.extractor)
	if err != nil {
		return nil, err
	}
	for _, warning := range parts.Warnings {
		m.logger.Warn().Msg(warning)
	}

	if m.policies != nil {
		result, err := m.policies.EvaluateHooks(ctx, op, parts.Hooks)
		if err != nil {
			return nil, fmt.Errorf("hook policy evaluation failed: %w", err)
		}
		for i := range result.Violations {
			v := &result.Violations[i]
			m.logger.Warn().
				Str("policy", v.Policy).
				Str("hook", v.Hook).
				Str("severity", string(v.Severity)).
				Msg(v.Message)
		}
		if !result.Allowed {
			return nil, lifecycle.NewPermanentError(
				fmt.Sprintf("admission policy denied %d hook(s)", len(result.Violations)), nil).
				WithCode(lifecycle.ErrCodePolicyViolation)
		}
	}

	if main == nil {
		main = m.defaultMainAction(op, parts.Resources)
	}

	if m.tracer == nil {
		return m.coordinator.Perform(ctx, op, parts.Hooks, main)
	}

	spanCtx, span := m.tracer.StartOperation(ctx, op.String(), "")
	result, err := m.coordinator.Perform(spanCtx, op, parts.Hooks, main)
	if result != nil {
		// The run ID is assigned inside the coordinator.
		span.SetAttributes(attribute.String("hookmill.run_id", result.RunID))
	}
	telemetry.EndSpan(span, err)
	return result, err
}

// defaultMainAction loads the ordinary (non-hook) manifests into the
// target system in discovery order. Hooks never pass through here; they
// are excluded from the tracked resource set by construction.
func (m *Manager) defaultMainAction(op lifecycle.Operation, resources []*manifest.Manifest) lifecycle.MainAction {
	if op == lifecycle.OperationDelete {
		return func(ctx context.Context) error {
			m.logger.Info().
				Int("resources", len(resources)).
				Msg("Release resource removal is delegated to the release tracker")
			return nil
		}
	}

	return func(ctx context.Context) error {
		for _, res := range resources {
			if _, err := m.applier.Submit(ctx, res.Raw); err != nil {
				return fmt.Errorf("failed to load resource %s: %w", res.Name, err)
			}
		}
		return nil
	}
}
