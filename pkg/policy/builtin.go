package policy

import (
	"time"
)

// GetBuiltinPolicies returns the built-in hook admission policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		hookNamingPolicy(),
		deletePhaseKindPolicy(),
		phasePairingPolicy(),
	}
}

// hookNamingPolicy requires every hook manifest to carry a name.
func hookNamingPolicy() Policy {
	return Policy{
		Name:        "hook-naming",
		Description: "Hooks must declare a metadata name so failures can be attributed",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming"},
		CreatedAt:   time.Now(),
		Rego: `package hookmill.policies.naming

import rego.v1

deny contains violation if {
	input.hook
	not input.hook.name
	violation := {
		"message": "hook manifest must declare a metadata name",
		"severity": "error",
	}
}

deny contains violation if {
	input.hook
	input.hook.name == ""
	violation := {
		"message": "hook manifest must declare a non-empty metadata name",
		"severity": "error",
	}
}
`,
	}
}

// deletePhaseKindPolicy flags non-workload kinds bound to delete phases.
// Config-like objects in a delete phase usually indicate a copy-paste
// mistake in the annotation.
func deletePhaseKindPolicy() Policy {
	return Policy{
		Name:        "delete-phase-kinds",
		Description: "Warns when a non run-to-completion kind binds to a delete phase",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"phases"},
		CreatedAt:   time.Now(),
		Rego: `package hookmill.policies.deletephases

import rego.v1

delete_phases := {"pre-delete", "post-delete"}

deny contains violation if {
	input.hook
	some phase in input.hook.phases
	delete_phases[phase]
	input.hook.kind != "Job"
	violation := {
		"message": sprintf("hook %s binds kind %s to %s; delete phases usually run Jobs", [input.hook.name, input.hook.kind, phase]),
		"severity": "warning",
		"hook": input.hook.name,
	}
}
`,
	}
}

// phasePairingPolicy flags a hook bound to both the pre and post phase of
// the same operation, which usually means the author wanted two manifests.
func phasePairingPolicy() Policy {
	return Policy{
		Name:        "phase-pairing",
		Description: "Warns when one hook binds both pre and post phases of the same operation",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"phases"},
		CreatedAt:   time.Now(),
		Rego: `package hookmill.policies.pairing

import rego.v1

pairs := [["pre-install", "post-install"], ["pre-upgrade", "post-upgrade"], ["pre-delete", "post-delete"], ["pre-rollback", "post-rollback"]]

deny contains violation if {
	input.hook
	some pair in pairs
	phases := {p | some p in input.hook.phases}
	phases[pair[0]]
	phases[pair[1]]
	violation := {
		"message": sprintf("hook %s binds both %s and %s; the same resource will be submitted twice", [input.hook.name, pair[0], pair[1]]),
		"severity": "warning",
		"hook": input.hook.name,
	}
}
`,
	}
}
