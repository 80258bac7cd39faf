package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hookmill/hookmill/pkg/config"
	"github.com/hookmill/hookmill/pkg/lifecycle"
	"github.com/hookmill/hookmill/pkg/manifest"
	"github.com/hookmill/hookmill/pkg/policy"
)

// lintReport is the JSON shape of a lint run.
type lintReport struct {
	Hooks      []lintHook         `json:"hooks"`
	Resources  int                `json:"resources"`
	Warnings   []string           `json:"warnings,omitempty"`
	Violations []policy.Violation `json:"violations,omitempty"`
	Allowed    bool               `json:"allowed"`
}

type lintHook struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Phases []string `json:"phases"`
}

func newLintCommand() *cobra.Command {
	var (
		manifestFiles []string
		operation     string
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "lint -f manifest.yaml [-f more.yaml ...]",
		Short: "Validate hook annotations and policies without executing",
		Long: `Lint decodes the given manifests, extracts hook annotations, and
evaluates admission policies against the discovered hooks. Nothing is
submitted to the target system.

With --strict, a manifest whose hook annotation names an unrecognized
phase fails the lint instead of being reported as a warning.`,
		Example: `  # Check annotations and built-in policies
  hookmill lint -f rendered.yaml

  # Lint for a specific operation, failing on unknown phases
  hookmill lint -f rendered.yaml --operation delete --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			op := lifecycle.Operation(operation)
			if err := op.Validate(); err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			manifests, err := manifest.DecodeFiles(manifestFiles)
			if err != nil {
				return err
			}

			extractor := &manifest.Extractor{Strict: strict || cfg.Hooks.StrictAnnotations}
			parts, err := manifest.Partition(manifests, extractor)
			if err != nil {
				return err
			}

			policies, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			if len(cfg.Policy.Paths) > 0 {
				if err := policies.LoadPolicies(cmd.Context(), cfg.Policy.Paths); err != nil {
					return err
				}
			}
			result, err := policies.EvaluateHooks(cmd.Context(), op, parts.Hooks)
			if err != nil {
				return err
			}

			report := buildLintReport(parts, result)
			printLintReport(report)
			if !report.Allowed {
				return lifecycle.NewPermanentError("lint failed: policy violations", nil).
					WithCode(lifecycle.ErrCodePolicyViolation)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&manifestFiles, "file", "f", nil, "rendered manifest file (repeatable)")
	cmd.Flags().StringVar(&operation, "operation", "install", "operation to lint against (install, upgrade, rollback, delete)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unrecognized phase annotations")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func buildLintReport(parts *manifest.PartitionResult, result *policy.Result) lintReport {
	report := lintReport{
		Resources:  len(parts.Resources),
		Warnings:   parts.Warnings,
		Violations: result.Violations,
		Allowed:    result.Allowed,
	}
	report.Warnings = append(report.Warnings, result.Warnings...)

	seen := make(map[string]bool)
	for _, phase := range lifecycle.Phases {
		for _, hook := range parts.Hooks.Get(phase) {
			if seen[hook.Name] {
				continue
			}
			seen[hook.Name] = true
			lh := lintHook{Name: hook.Name, Kind: hook.Kind}
			for _, p := range hook.Phases {
				lh.Phases = append(lh.Phases, string(p))
			}
			report.Hooks = append(report.Hooks, lh)
		}
	}
	sort.Slice(report.Hooks, func(i, j int) bool {
		return report.Hooks[i].Name < report.Hooks[j].Name
	})
	return report
}

func printLintReport(report lintReport) {
	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}

	fmt.Printf("%d hook(s), %d ordinary resource(s)\n", len(report.Hooks), report.Resources)
	for _, h := range report.Hooks {
		fmt.Printf("  %s (%s): %v\n", h.Name, h.Kind, h.Phases)
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, v := range report.Violations {
		fmt.Printf("%s: policy %s: %s (hook %s)\n", v.Severity, v.Policy, v.Message, v.Hook)
	}
	if report.Allowed {
		fmt.Println("lint passed")
	} else {
		fmt.Println("lint failed")
	}
}
