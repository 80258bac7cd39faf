package policy

import (
	"time"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block the operation.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Policy represents an admission policy with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description.
	Description string `json:"description" yaml:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego" yaml:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity" yaml:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// CreatedAt is when the policy was loaded.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Hook names the hook that violated the policy.
	Hook string `json:"hook,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the outcome of evaluating policies against a hook set.
type Result struct {
	// Allowed is false if any violation reached error severity.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block the decision.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// HookInput is the per-hook view handed to Rego as input.hook.
type HookInput struct {
	// Name is the hook's manifest name.
	Name string `json:"name"`

	// Kind is the hook's resource kind.
	Kind string `json:"kind"`

	// Phases lists the phases the hook is bound to.
	Phases []lifecycle.Phase `json:"phases"`
}

// Input is the input document for policy evaluation.
type Input struct {
	// Hook is the hook being evaluated.
	Hook *HookInput `json:"hook"`

	// Operation is the release operation in progress.
	Operation lifecycle.Operation `json:"operation"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// Context carries evaluation context information.
type Context struct {
	// Timestamp is when the evaluation started.
	Timestamp time.Time `json:"timestamp"`
}
